package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	assert.Equal(t, "en", Detect("The quick brown fox jumps over the lazy dog"))
	assert.Equal(t, "es", Detect("El rápido zorro marrón salta sobre el perro perezoso"))
	assert.Equal(t, "ru", Detect("Быстрая коричневая лиса прыгает через ленивую собаку"))
}

func TestDetect_Unknown(t *testing.T) {
	assert.Equal(t, Unknown, Detect(""))
	assert.Equal(t, Unknown, Detect("   "))
	assert.Equal(t, Unknown, Detect("1234 !!"))
}

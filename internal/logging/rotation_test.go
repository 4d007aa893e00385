package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingWriter_RotatesAtLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 2})
	require.NoError(t, err)
	defer func() { _ = rw.Close() }()

	chunk := []byte(strings.Repeat("x", 600*1024))
	for i := 0; i < 3; i++ {
		_, err := rw.Write(chunk)
		require.NoError(t, err)
	}

	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")
	assert.Equal(t, int64(len(chunk)), rw.Size())
}

func TestRotatingWriter_DisabledWhenZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	rw, err := NewRotatingWriter(path, RotationConfig{})
	require.NoError(t, err)

	_, err = rw.Write([]byte(strings.Repeat("y", 2*1024*1024)))
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	assert.NoFileExists(t, path+".1")
}

func TestRotatingWriter_Compress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 1, Compress: true})
	require.NoError(t, err)
	defer func() { _ = rw.Close() }()

	chunk := []byte(strings.Repeat("z", 700*1024))
	_, err = rw.Write(chunk)
	require.NoError(t, err)
	_, err = rw.Write(chunk)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path + ".1.gz")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), "test.log"), DefaultRotationConfig())
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	_, err = rw.Write([]byte("late"))
	assert.Error(t, err)
	assert.NoError(t, rw.Close(), "second close is a no-op")
}

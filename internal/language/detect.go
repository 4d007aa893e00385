// Package language guesses the natural language of an item's display name.
package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Unknown is the tag used when no language can be determined.
const Unknown = "unknown"

// Detect returns the ISO 639-1 code of text's language, or Unknown. Display
// names are short, so results are best-effort.
func Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return Unknown
	}
	info := whatlanggo.Detect(text)
	if info.Lang == -1 {
		return Unknown
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return Unknown
	}
	return code
}

package reconciler

import (
	"strings"
	"unicode"
)

// DefaultStrippedTokens are the model-emitted artifacts known to
// appear in whisper-family output. The set is configurable via
// Config.StrippedTokens; this is only the default.
var DefaultStrippedTokens = []string{
	"[BLANK_AUDIO]",
	"[Music]",
	"[MUSIC]",
	"[Applause]",
	"[silence]",
}

// normalize collapses whitespace runs to single spaces, trims the
// result, and removes any of stripped as whole substrings.
func normalize(text string, stripped []string) string {
	for _, tok := range stripped {
		text = strings.ReplaceAll(text, tok, " ")
	}
	return collapseWhitespace(text)
}

func collapseWhitespace(text string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range strings.TrimSpace(text) {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				b.WriteByte(' ')
			}
			lastWasSpace = true
			continue
		}
		b.WriteRune(r)
		lastWasSpace = false
	}
	return strings.TrimSpace(b.String())
}

// splitWords splits normalized text into words on whitespace.
func splitWords(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Fields(text)
}

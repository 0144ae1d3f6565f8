package ocr

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// glyphs maps checkbox and mark variants onto the symbol downstream readers expect.
var glyphs = strings.NewReplacer(
	"☓", "☒",
	"🗷", "☒",
	"🗵", "☒",
	"🗹", "☑",
	"✔", "✓",
	"✘", "✗",
	"✕", "✗",
)

// CleanText canonicalizes OCR output. It applies NFKC so Hangul stays composed,
// maps mark glyphs, and drops control and format characters except tab, newline
// and carriage return.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	text = norm.NFKC.String(text)
	text = glyphs.Replace(text)

	text = strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r':
			return r
		}
		if unicode.Is(unicode.C, r) {
			return -1
		}
		return r
	}, text)

	return strings.TrimSpace(text)
}

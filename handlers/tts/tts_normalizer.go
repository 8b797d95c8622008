package tts

import (
	"regexp"
	"strings"
)

// normalizeTextForTTS drops what a synthesizer cannot voice. Markup is the
// sanitizer's job; this only handles emoji and whitespace.
func normalizeTextForTTS(text string) string {
	text = removeEmojis(text)
	text = replaceMultipleSpaces(text)
	return strings.TrimSpace(text)
}

func removeEmojis(text string) string {
	return removeEmojiRegex.ReplaceAllString(text, "")
}

func replaceMultipleSpaces(text string) string {
	return multipleSpacesRegex.ReplaceAllString(text, " ")
}

// truncateAtSentence cuts text to at most limit bytes, preferring the last
// sentence end so the voice does not stop mid-word.
func truncateAtSentence(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if i := strings.LastIndexAny(cut, ".!?"); i > 0 {
		return cut[:i+1]
	}
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		return cut[:i]
	}
	// Back off to a rune boundary.
	for limit > 0 && !isRuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

var (
	removeEmojiRegex    = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{Z}\s$%+=<>^|~]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

package text

import (
	"regexp"
	"strings"
)

// ISanitizer cleans text before it is handed to a speech synthesizer.
type ISanitizer interface {
	Sanitize(text string) string
}

// SpeechSanitizer implements ISanitizer with SanitizeForSpeech.
type SpeechSanitizer struct{}

func (SpeechSanitizer) Sanitize(text string) string { return SanitizeForSpeech(text) }

var (
	emphasisReplacer = strings.NewReplacer("*", "")
	quoteReplacer    = strings.NewReplacer(`"`, "", "'", "")
	markdownLinkRe   = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	symbolReplacer   = strings.NewReplacer("_", "", "#", "", ">", "", "`", "", "(", "", ")", "")
)

// SanitizeForSpeech removes characters a synthesizer would read out loud.
// Steps run in order: emphasis markers, quotes, markdown links collapse to
// their label, then the remaining symbol set. The result contains none of
// the removed characters, so applying it twice changes nothing.
func SanitizeForSpeech(text string) string {
	text = emphasisReplacer.Replace(text)
	text = quoteReplacer.Replace(text)
	text = markdownLinkRe.ReplaceAllString(text, "$1")
	text = symbolReplacer.Replace(text)
	return text
}

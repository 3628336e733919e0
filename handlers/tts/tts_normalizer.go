package tts

import (
	"regexp"
	"strings"
)

// normalizeTextForTTS strips formatting that would be read out literally.
func normalizeTextForTTS(text string) string {
	text = markdownImageRegex.ReplaceAllString(text, "")
	text = markdownLinkRegex.ReplaceAllString(text, "$1")
	text = codeFenceRegex.ReplaceAllString(text, "")
	text = headingRegex.ReplaceAllString(text, "")
	text = markdownReplacer.Replace(text)
	text = removeEmojiRegex.ReplaceAllString(text, "")
	text = multipleSpacesRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// truncateAtWord cuts text to at most max runes, backing up to the last space.
func truncateAtWord(text string, max int) string {
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return text
	}
	cut := max
	for i := max; i > max/2; i-- {
		if runes[i] == ' ' {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut]))
}

var markdownReplacer = strings.NewReplacer(
	"**", "", // bold
	"__", "", // underline
	"~~", "", // strikethrough
	"`", "", // inline code
	"*", "", // italic
)

var (
	markdownImageRegex  = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	markdownLinkRegex   = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	codeFenceRegex      = regexp.MustCompile("(?m)^```.*$")
	headingRegex        = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	removeEmojiRegex    = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{Z}\s$+<=>^|~]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

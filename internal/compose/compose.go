package compose

import (
	"strings"
	"unicode/utf8"
)

// XMaxLength is the character limit for a post on X.
const XMaxLength = 280

// Hashtags turns keywords into space-separated hashtags, removing spaces
// inside each keyword. Keywords that end up empty are dropped.
func Hashtags(keywords []string) string {
	tags := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ReplaceAll(kw, " ", "")
		if kw == "" {
			continue
		}
		tags = append(tags, "#"+kw)
	}
	return strings.Join(tags, " ")
}

// Compose appends the keywords' hashtags to text after a blank line.
func Compose(text string, keywords []string) string {
	tags := Hashtags(keywords)
	if tags == "" {
		return text
	}
	return text + "\n\n" + tags
}

// FitsLimit reports whether text is at most limit characters long.
func FitsLimit(text string, limit int) bool {
	return utf8.RuneCountInString(text) <= limit
}

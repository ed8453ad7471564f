package subtitle

import (
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Clean strips markup tags such as <c.teletext> or <i> and trims surrounding
// whitespace. Empty input is returned unchanged. Clean(Clean(s)) == Clean(s).
func Clean(text string) string {
	if text == "" {
		return text
	}
	return strings.TrimSpace(tagPattern.ReplaceAllString(text, ""))
}

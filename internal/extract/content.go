package extract

import (
	"regexp"
	"strings"
)

var (
	blankLinesRe = regexp.MustCompile(`\n\s*\n(\s*\n)+`)
	spacesRe     = regexp.MustCompile(`[ \t]+`)
)

// CleanContent collapses runs of blank lines and horizontal whitespace, then
// truncates to maxLen runes. The cut moves back to the last space when that
// keeps at least 80% of the budget, and "..." is appended. maxLen <= 0
// disables truncation.
func CleanContent(text string, maxLen int) string {
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	text = spacesRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	r := []rune(text)
	if maxLen <= 0 || len(r) <= maxLen {
		return text
	}

	cut := string(r[:maxLen])
	if idx := strings.LastIndex(cut, " "); idx >= 0 && len([]rune(cut[:idx])) > maxLen*8/10 {
		cut = cut[:idx]
	}
	return cut + "..."
}

package models

import "strings"

// TitleLength is the cap for provisional conversation titles derived from
// the first user message. The server generates a proper title later.
const TitleLength = 50

// ProvisionalTitle derives a display title from user text by truncating at
// TitleLength runes, matching the server's own derivation.
func ProvisionalTitle(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= TitleLength {
		return text
	}
	return string(runes[:TitleLength]) + "..."
}

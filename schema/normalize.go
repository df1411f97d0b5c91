package schema

import "strings"

// NormalizeLanguage lowercases and trims a language tag.
// An empty tag is reported as "plaintext".
func NormalizeLanguage(tag string) string {
	trimmed := strings.ToLower(strings.TrimSpace(tag))
	if trimmed == "" {
		return "plaintext"
	}
	return trimmed
}

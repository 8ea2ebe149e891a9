package utils

import "strings"

// TruncateForLog flattens s to a single line and cuts it to limit runes.
// Upstream error pages are multi-line HTML, which breaks log lines otherwise.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	flat := strings.Join(strings.Fields(s), " ")

	runes := []rune(flat)
	if len(runes) <= limit {
		return flat
	}
	return string(runes[:limit]) + "..."
}

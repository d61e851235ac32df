package util

import "strings"

// NormalizeKey lowercases and trims a string for use as a consistent lookup key.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SplitList splits a comma-separated list. Entries are trimmed, empty
// entries and stray delimiters are dropped, and duplicates are removed
// keeping the first occurrence. The result is nil for an empty list.
func SplitList(s string) []string {
	return Dedupe(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';'
	}))
}

// Dedupe trims every entry, drops empty ones and removes duplicates while
// preserving order.
func Dedupe(items []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

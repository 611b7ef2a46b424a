// Package strings holds small helpers for list-valued settings.
package strings

import "strings"

// SplitList splits a comma separated setting, trimming whitespace and
// dropping empty and repeated entries. Order is preserved.
//
//	SplitList(" a:9092, b:9092,,a:9092 ") // []string{"a:9092", "b:9092"}
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

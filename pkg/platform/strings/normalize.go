// Package strings normalizes the string lists read from configuration and
// session claims.
package strings

import (
	"strings"
)

// Normalize trims every value, drops empties and removes duplicates while
// preserving first-seen order. With fold set values are lowercased first, so
// "Admin" and "admin" collapse. It returns nil when nothing survives.
//
// Example:
//
//	Normalize([]string{"  Admin ", "student", "ADMIN", ""}, true)
//	// Returns: []string{"admin", "student"}
func Normalize(values []string, fold bool) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if fold {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SplitList splits a comma-separated setting such as KAFKA_BROKERS and
// normalizes the parts without changing their case.
func SplitList(raw string) []string {
	return Normalize(strings.Split(raw, ","), false)
}

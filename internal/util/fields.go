package util

import "strings"

// PickFirstNonEmpty returns the value of the first candidate key whose value
// in row is non-blank after trimming, or "" when none match. It tolerates
// the heterogeneous column naming found across facility dataset exports.
func PickFirstNonEmpty(row map[string]string, keys []string) string {
	for _, key := range keys {
		if v, ok := row[key]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

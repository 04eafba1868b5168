// Package util provides small parsing helpers shared across components.
//
// This file implements opening-hours parsing for the loosely formatted
// schedule text found in facility datasets ("9h-12h30; 14h-19h",
// "09:00-19:00", ...). Malformed segments are silently dropped; parsing
// never fails.
package util

import (
	"fmt"
	"iter"
	"regexp"
	"strconv"
	"strings"

	"github.com/vaccibot/vaccibot/internal/models"
)

// rangeRe matches one "H[:MM]-H[:MM]" segment after "h" separators have been
// normalized to ":". The en dash is accepted alongside the hyphen.
var rangeRe = regexp.MustCompile(`(\d{1,2}):?(\d{0,2})\s*[-–]\s*(\d{1,2}):?(\d{0,2})`)

// hourNormalizer rewrites the French "9h30" notation into "9:30".
var hourNormalizer = strings.NewReplacer("h", ":", "H", ":")

// segmentSplitRe splits schedule text on the common separators.
var segmentSplitRe = regexp.MustCompile(`[;,/|]+`)

// ParseOpeningRanges extracts opening ranges from free-text schedule text.
// The returned sequence is lazy, finite, and restartable: ranging over it a
// second time re-parses from the start. Segments that do not contain a
// recognizable time range yield nothing.
func ParseOpeningRanges(text string) iter.Seq[models.OpeningRange] {
	return func(yield func(models.OpeningRange) bool) {
		if text == "" {
			return
		}
		normalized := hourNormalizer.Replace(text)
		for _, segment := range segmentSplitRe.Split(normalized, -1) {
			segment = strings.TrimSpace(segment)
			if segment == "" {
				continue
			}
			m := rangeRe.FindStringSubmatch(segment)
			if m == nil {
				continue
			}
			r := models.OpeningRange{
				StartHour:   atoiOrZero(m[1]),
				StartMinute: atoiOrZero(m[2]),
				EndHour:     atoiOrZero(m[3]),
				EndMinute:   atoiOrZero(m[4]),
			}
			if !yield(r) {
				return
			}
		}
	}
}

// atoiOrZero converts a digit string to int, treating "" as 0. The inputs
// come from rangeRe capture groups and are at most two digits.
func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// IsOpenAt reports whether any range contains the given time of day,
// expressed as minutes since midnight. Range bounds are inclusive on both
// ends.
func IsOpenAt(ranges []models.OpeningRange, nowMinutes int) bool {
	for _, r := range ranges {
		if nowMinutes >= r.StartMinutes() && nowMinutes <= r.EndMinutes() {
			return true
		}
	}
	return false
}

// FormatRanges renders ranges as "HH:MM–HH:MM" joined by " ; ". Empty input
// renders as a single dash placeholder.
func FormatRanges(ranges []models.OpeningRange) string {
	if len(ranges) == 0 {
		return "—"
	}
	parts := make([]string, 0, len(ranges))
	for _, r := range ranges {
		parts = append(parts, fmt.Sprintf("%02d:%02d–%02d:%02d", r.StartHour, r.StartMinute, r.EndHour, r.EndMinute))
	}
	return strings.Join(parts, " ; ")
}

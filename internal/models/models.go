// Package models defines core data structures used across Vaccibot modules.
//
// It includes types for incoming user responses, geographic positions, and
// the facility records served by the directory, which are shared across
// modules to avoid circular imports.
package models

import "time"

// Response represents an incoming user message.
type Response struct {
	From string    `json:"from"`
	Body string    `json:"body"`
	Time time.Time `json:"time"`
}

// Position is a geographic coordinate pair from the geolocation provider.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Duration is a user-reported symptom duration, e.g. {3, "jours"}.
type Duration struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

// OpeningRange is a single opening interval within one day.
// Hours are 0-23, minutes 0-59, as parsed from free-text schedules.
type OpeningRange struct {
	StartHour   int `json:"start_hour"`
	StartMinute int `json:"start_minute"`
	EndHour     int `json:"end_hour"`
	EndMinute   int `json:"end_minute"`
}

// StartMinutes returns the range start as minutes since midnight.
func (r OpeningRange) StartMinutes() int { return r.StartHour*60 + r.StartMinute }

// EndMinutes returns the range end as minutes since midnight.
func (r OpeningRange) EndMinutes() int { return r.EndHour*60 + r.EndMinute }

// FacilityHours holds the opening-hours text attached to a facility:
// either a single global free-text range, a per-weekday mapping, or both.
type FacilityHours struct {
	Global string            `json:"global,omitempty"`
	PerDay map[string]string `json:"per_day,omitempty"`
}

// Facility is one pharmacy/vaccination-center record. Records are immutable
// once loaded; only records with finite coordinates are retained.
type Facility struct {
	Name      string        `json:"name"`
	Address   string        `json:"address"`
	City      string        `json:"city"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Hours     FacilityHours `json:"hours"`
	// TodayRanges holds the parsed opening ranges for the day the record
	// was loaded. If the day changes mid-session they go stale; this is an
	// accepted limitation of the one-shot load.
	TodayRanges []OpeningRange `json:"today_ranges,omitempty"`
}

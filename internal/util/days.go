package util

import "time"

// daysFR maps time.Weekday (Sunday = 0) to the French day names used as keys
// in the facility dataset's per-weekday hour columns.
var daysFR = [...]string{"Dimanche", "Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi"}

// DayLabel returns the French weekday name for the given time.
func DayLabel(t time.Time) string {
	return daysFR[int(t.Weekday())]
}

// TodayLabel returns the French weekday name for the current local day.
func TodayLabel() string {
	return DayLabel(time.Now())
}

// MinutesOfDay returns the time of day as minutes since midnight.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

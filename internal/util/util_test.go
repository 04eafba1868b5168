package util

import (
	"math"
	"testing"
	"time"
)

func TestDayLabel(t *testing.T) {
	// 2024-01-01 was a Monday.
	monday := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if got := DayLabel(monday); got != "Lundi" {
		t.Errorf("DayLabel(monday) = %q, want Lundi", got)
	}
	sunday := time.Date(2024, 1, 7, 10, 0, 0, 0, time.UTC)
	if got := DayLabel(sunday); got != "Dimanche" {
		t.Errorf("DayLabel(sunday) = %q, want Dimanche", got)
	}
}

func TestMinutesOfDay(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 30, 59, 0, time.UTC)
	if got := MinutesOfDay(at); got != 750 {
		t.Errorf("MinutesOfDay = %d, want 750", got)
	}
}

func TestPickFirstNonEmpty(t *testing.T) {
	row := map[string]string{
		"Titre": "",
		"Nom":   "  ",
		"name":  "Pharmacie Centrale",
	}
	if got := PickFirstNonEmpty(row, []string{"Titre", "Nom", "name"}); got != "Pharmacie Centrale" {
		t.Errorf("PickFirstNonEmpty = %q, want Pharmacie Centrale", got)
	}
	if got := PickFirstNonEmpty(row, []string{"Adresse"}); got != "" {
		t.Errorf("PickFirstNonEmpty missing key = %q, want empty", got)
	}
}

func TestDistanceKm(t *testing.T) {
	// Same point: zero distance.
	if d := DistanceKm(48.8566, 2.3522, 48.8566, 2.3522); d != 0 {
		t.Errorf("distance to self = %f, want 0", d)
	}

	// Symmetry.
	d1 := DistanceKm(48.8566, 2.3522, 45.7640, 4.8357)
	d2 := DistanceKm(45.7640, 4.8357, 48.8566, 2.3522)
	if math.Abs(d1-d2) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", d1, d2)
	}

	// Paris-Lyon is roughly 390 km great-circle.
	if d1 < 380 || d1 > 400 {
		t.Errorf("Paris-Lyon distance = %f, expected ~390", d1)
	}
}

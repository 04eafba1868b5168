// Package specialist maps free-text symptom descriptions to a medical
// specialty via keyword lookup.
package specialist

import "strings"

// Specialty names as they appear in booking URLs and user-facing replies.
const (
	Dentiste           = "dentiste"
	Dermatologue       = "dermatologue"
	Ophtalmologue      = "ophtalmologue"
	MedecinGeneraliste = "médecin généraliste"
)

// Resolve returns the specialty matching the symptom text. Keyword families
// are checked in fixed priority order and the first match wins; a text
// mentioning both teeth and skin resolves to the dentist. Unmatched text
// falls back to the general practitioner.
func Resolve(symptoms string) string {
	t := strings.ToLower(symptoms)
	switch {
	case contains(t, "dents", "dent"):
		return Dentiste
	case contains(t, "peau", "eczéma", "acné"):
		return Dermatologue
	case contains(t, "yeux", "vue"):
		return Ophtalmologue
	case contains(t, "gorge", "toux", "fièvre", "grippe"):
		return MedecinGeneraliste
	default:
		return MedecinGeneraliste
	}
}

func contains(t string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}

// Package intent provides the keyword and regex classifiers that interpret
// free-text user replies: yes/no detection, age and duration extraction, and
// coarse message intent labeling. Classification is strictly substring and
// regex based; ambiguous input is reported as such, never guessed.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vaccibot/vaccibot/internal/models"
)

// Intent labels a user message with its coarse purpose.
type Intent string

// Intent constants.
const (
	IntentGreeting          Intent = "greeting"
	IntentThanks            Intent = "thanks"
	IntentDuration          Intent = "duration"
	IntentSymptom           Intent = "symptom"
	IntentAge               Intent = "age"
	IntentLocation          Intent = "location"
	IntentVaccinatedYes     Intent = "vaccinated_yes"
	IntentVaccinatedNo      Intent = "vaccinated_no"
	IntentVaccinationStatus Intent = "vaccination_status"
	IntentUnknown           Intent = "unknown"
)

// YesNo is the result of classifying a reply against the yes/no keyword lists.
type YesNo int

// YesNo values. Ambiguous replies classify as YesNoUnknown and must trigger
// a re-prompt, never a guessed transition.
const (
	YesNoUnknown YesNo = iota
	Yes
	No
)

var (
	greetings = []string{"salut", "bonjour", "bonsoir", "hello", "yo"}
	thanks    = []string{"merci", "thx", "thanks", "super", "cool", "top"}
	yesWords  = []string{"oui", "ouais", "yes", "yep"}
	noWords   = []string{"non", "nope", "pas vacciné", "pas vaccine", "pas vacciner", "non vacciné", "non vaccine"}

	symptomKeywords = []string{
		"fièvre", "toux", "rhume", "fatigue", "maux", "tête", "nausée",
		"grippe", "courbature", "mal", "dents", "gorge", "peau", "yeux",
	}

	durationRe    = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(semaine|semaines|jour|jours|heure|heures)\b`)
	ageExplicitRe = regexp.MustCompile(`(?i)\bj[' ]?ai\s*(\d{1,3})\s*(ans?|years?)\b`)
	ageWithUnitRe = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(ans?|years?)\b`)
	bareNumberRe  = regexp.MustCompile(`^\s*(\d{1,3})\s*$`)
	leadNumberRe  = regexp.MustCompile(`^(\d{1,3})\b`)
)

// containsAny reports whether lower contains any of the given keywords as a
// substring.
func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// ClassifyYesNo classifies a reply against the fixed yes/no keyword lists
// using case-insensitive substring matching. The bare substring "non" also
// counts as a no, mirroring the original keyword tables; a reply matching
// neither list is YesNoUnknown.
func ClassifyYesNo(message string) YesNo {
	lower := strings.ToLower(message)
	if containsAny(lower, yesWords) {
		return Yes
	}
	if containsAny(lower, noWords) || strings.Contains(lower, "non") {
		return No
	}
	return YesNoUnknown
}

// ExtractAge extracts an age from a reply, trying the explicit "j'ai N ans"
// pattern first and falling back to a bare leading integer. Only ages in
// [1,119] are accepted.
func ExtractAge(message string) (int, bool) {
	lower := strings.ToLower(message)
	m := ageExplicitRe.FindStringSubmatch(lower)
	if m == nil {
		m = leadNumberRe.FindStringSubmatch(strings.TrimSpace(lower))
	}
	if m == nil {
		return 0, false
	}
	age, err := strconv.Atoi(m[1])
	if err != nil || age <= 0 || age >= 120 {
		return 0, false
	}
	return age, true
}

// ExtractDuration extracts a symptom duration such as "3 jours" or
// "1 semaine". The unit is stored as the user wrote it, lowercased.
func ExtractDuration(message string) (models.Duration, bool) {
	m := durationRe.FindStringSubmatch(strings.ToLower(message))
	if m == nil {
		return models.Duration{}, false
	}
	value, err := strconv.Atoi(m[1])
	if err != nil {
		return models.Duration{}, false
	}
	return models.Duration{Value: value, Unit: m[2]}, true
}

// Detect labels a message with its coarse intent. atStart relaxes the age
// rule so that a bare number counts as an age answer on the opening
// question. The checks run in fixed priority order; first match wins.
func Detect(message string, atStart bool) Intent {
	lower := strings.ToLower(message)

	if containsAny(lower, greetings) {
		return IntentGreeting
	}
	if containsAny(lower, thanks) {
		return IntentThanks
	}
	if durationRe.MatchString(lower) {
		return IntentDuration
	}
	if containsAny(lower, symptomKeywords) {
		return IntentSymptom
	}
	if ageExplicitRe.MatchString(lower) || ageWithUnitRe.MatchString(lower) {
		return IntentAge
	}
	if atStart && bareNumberRe.MatchString(lower) {
		return IntentAge
	}

	if strings.Contains(lower, "j'habite") || strings.Contains(lower, "je suis à") ||
		strings.Contains(lower, "ma ville") || strings.Contains(lower, "ville") {
		return IntentLocation
	}

	if strings.Contains(lower, "vaccin") {
		if strings.Contains(lower, "pas") || strings.Contains(lower, "non") {
			return IntentVaccinatedNo
		}
		if strings.Contains(lower, "oui") || strings.Contains(lower, "fait") {
			return IntentVaccinatedYes
		}
		return IntentVaccinationStatus
	}
	return IntentUnknown
}

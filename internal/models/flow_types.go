// Package models defines flow type definitions shared across modules.
package models

// FlowType represents a specific type of dialogue flow.
type FlowType string

// StateType represents a specific step within a flow.
type StateType string

// DataKey represents a key for storing state-specific data.
type DataKey string

// Flow type constants.
const (
	FlowTypeIntake FlowType = "intake"
)

// Step constants for the health-intake flow. The four *_CONSENT and
// *_AWAIT_CITY steps are the nested location sub-dialogues, promoted to
// first-class steps so dispatch never depends on ad hoc string tags.
const (
	StateAskAge                       StateType = "ASK_AGE"
	StateAskHasSymptoms               StateType = "ASK_HAS_SYMPTOMS"
	StateAskSymptomsText              StateType = "ASK_SYMPTOMS_TEXT"
	StateAskDuration                  StateType = "ASK_DURATION"
	StateAskVaccinated                StateType = "ASK_VACCINATED"
	StateEnsureLocationForVaccination StateType = "ENSURE_LOCATION_FOR_VACCINATION"
	StateEnsureLocationGeoConsent     StateType = "ENSURE_LOCATION_GEO_CONSENT"
	StateEnsureLocationAwaitCity      StateType = "ENSURE_LOCATION_AWAIT_CITY"
	StateOfferVaccinationCenter       StateType = "OFFER_VACCINATION_CENTER"
	StateSuggestSpecialist            StateType = "SUGGEST_SPECIALIST"
	StateSpecialistGeoConsent         StateType = "SUGGEST_SPECIALIST_GEO_CONSENT"
	StateSpecialistAwaitCity          StateType = "SUGGEST_SPECIALIST_AWAIT_CITY"
	StateEnd                          StateType = "END"
)

// Data key constants for the health-intake flow.
const (
	DataKeyAge           DataKey = "age"
	DataKeySymptoms      DataKey = "symptoms"
	DataKeyDurationValue DataKey = "durationValue"
	DataKeyDurationUnit  DataKey = "durationUnit"
	DataKeyVaccinated    DataKey = "vaccinated"
	DataKeyLastCity      DataKey = "lastCity"
	DataKeyLatitude      DataKey = "latitude"
	DataKeyLongitude     DataKey = "longitude"
	// DataKeyTurn counts processed user messages for this session. Async
	// completions carry the turn at which they were issued; a completion
	// whose turn no longer matches is stale and must not mutate state.
	DataKeyTurn DataKey = "turn"
)

// IsValidState checks whether a state belongs to the intake flow.
func IsValidState(s StateType) bool {
	switch s {
	case StateAskAge, StateAskHasSymptoms, StateAskSymptomsText, StateAskDuration,
		StateAskVaccinated, StateEnsureLocationForVaccination, StateEnsureLocationGeoConsent,
		StateEnsureLocationAwaitCity, StateOfferVaccinationCenter, StateSuggestSpecialist,
		StateSpecialistGeoConsent, StateSpecialistAwaitCity, StateEnd:
		return true
	}
	return false
}

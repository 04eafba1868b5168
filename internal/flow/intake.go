// Package flow implements the health-intake dialogue: a step-keyed state
// machine that interprets free-text user replies against the current step
// and either asks the next question or hands off to the action orchestrator.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vaccibot/vaccibot/internal/intent"
	"github.com/vaccibot/vaccibot/internal/models"
)

// IntakeFlow drives the scripted intake conversation. One instance serves
// one conversation at a time; all session data lives in the state manager.
type IntakeFlow struct {
	stateManager StateManager
	msg          MessagingService
	orchestrator Orchestrator
}

// NewIntakeFlow creates an intake flow with its dependencies.
func NewIntakeFlow(deps Dependencies) *IntakeFlow {
	slog.Debug("IntakeFlow.NewIntakeFlow: creating flow",
		"hasStateManager", deps.StateManager != nil,
		"hasMessaging", deps.Messaging != nil,
		"hasOrchestrator", deps.Orchestrator != nil)
	return &IntakeFlow{
		stateManager: deps.StateManager,
		msg:          deps.Messaging,
		orchestrator: deps.Orchestrator,
	}
}

// Start resets any previous session for the participant and asks the opening
// question.
func (f *IntakeFlow) Start(ctx context.Context, participantID string) error {
	slog.Debug("IntakeFlow.Start: starting session", "participantID", participantID)
	if err := f.stateManager.ResetState(ctx, participantID, models.FlowTypeIntake); err != nil {
		return fmt.Errorf("failed to reset session state: %w", err)
	}
	if err := f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateAskAge); err != nil {
		return fmt.Errorf("failed to initialize session state: %w", err)
	}
	return f.msg.SendMessage(ctx, participantID, MsgAskAge)
}

// ProcessResponse interprets one user message against the current step and
// advances the machine. Unrecognized input at any step re-prompts without a
// transition; the machine never guesses.
func (f *IntakeFlow) ProcessResponse(ctx context.Context, participantID, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		slog.Debug("IntakeFlow.ProcessResponse: ignoring empty message", "participantID", participantID)
		return nil
	}

	turn, err := f.bumpTurn(ctx, participantID)
	if err != nil {
		return err
	}

	state, err := f.stateManager.GetCurrentState(ctx, participantID, models.FlowTypeIntake)
	if err != nil {
		return fmt.Errorf("failed to read current step: %w", err)
	}
	if state == "" {
		state = models.StateAskAge
	}
	slog.Debug("IntakeFlow.ProcessResponse: dispatching", "participantID", participantID, "state", state, "turn", turn)

	switch state {
	case models.StateAskAge:
		return f.handleAskAge(ctx, participantID, message)
	case models.StateAskHasSymptoms:
		return f.handleAskHasSymptoms(ctx, participantID, message)
	case models.StateAskSymptomsText:
		return f.handleAskSymptomsText(ctx, participantID, message)
	case models.StateAskDuration:
		return f.handleAskDuration(ctx, participantID, message)
	case models.StateAskVaccinated:
		return f.handleAskVaccinated(ctx, participantID, message)
	case models.StateEnsureLocationForVaccination:
		return f.ensureLocationPreface(ctx, participantID)
	case models.StateEnsureLocationGeoConsent:
		return f.handleEnsureLocationGeoConsent(ctx, participantID, message, turn)
	case models.StateEnsureLocationAwaitCity:
		return f.handleEnsureLocationAwaitCity(ctx, participantID, message)
	case models.StateOfferVaccinationCenter:
		return f.handleOfferVaccinationCenter(ctx, participantID, message)
	case models.StateSuggestSpecialist:
		return f.suggestSpecialist(ctx, participantID)
	case models.StateSpecialistGeoConsent:
		return f.handleSpecialistGeoConsent(ctx, participantID, message, turn)
	case models.StateSpecialistAwaitCity:
		return f.handleSpecialistAwaitCity(ctx, participantID, message)
	case models.StateEnd:
		return f.handleEnd(ctx, participantID, message)
	default:
		slog.Warn("IntakeFlow.ProcessResponse: unknown step", "participantID", participantID, "state", state)
		return f.msg.SendMessage(ctx, participantID, MsgStillAvailable)
	}
}

func (f *IntakeFlow) handleAskAge(ctx context.Context, participantID, message string) error {
	age, ok := intent.ExtractAge(message)
	if !ok {
		slog.Debug("IntakeFlow.handleAskAge: no valid age", "participantID", participantID)
		return f.msg.SendMessage(ctx, participantID, MsgAgeRetry)
	}
	if err := f.stateManager.SetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyAge, strconv.Itoa(age)); err != nil {
		return err
	}
	if err := f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateAskHasSymptoms); err != nil {
		return err
	}
	return f.msg.SendMessage(ctx, participantID, fmt.Sprintf(MsgAgeAckFmt, age))
}

func (f *IntakeFlow) handleAskHasSymptoms(ctx context.Context, participantID, message string) error {
	switch intent.ClassifyYesNo(message) {
	case intent.Yes:
		if err := f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateAskSymptomsText); err != nil {
			return err
		}
		return f.msg.SendMessage(ctx, participantID, MsgAskSymptoms)
	case intent.No:
		// No symptoms ends the conversation; nothing else runs this turn.
		if err := f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateEnd); err != nil {
			return err
		}
		return f.msg.SendMessage(ctx, participantID, MsgNoSymptoms)
	default:
		return f.msg.SendMessage(ctx, participantID, MsgSymptomsConfirm)
	}
}

func (f *IntakeFlow) handleAskSymptomsText(ctx context.Context, participantID, message string) error {
	if err := f.stateManager.SetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeySymptoms, message); err != nil {
		return err
	}
	if err := f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateAskDuration); err != nil {
		return err
	}
	return f.msg.SendMessage(ctx, participantID, MsgAskDuration)
}

func (f *IntakeFlow) handleAskDuration(ctx context.Context, participantID, message string) error {
	d, ok := intent.ExtractDuration(message)
	if !ok {
		return f.msg.SendMessage(ctx, participantID, MsgDurationRetry)
	}
	if err := f.stateManager.SetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyDurationValue, strconv.Itoa(d.Value)); err != nil {
		return err
	}
	if err := f.stateManager.SetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyDurationUnit, d.Unit); err != nil {
		return err
	}
	if err := f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateAskVaccinated); err != nil {
		return err
	}
	return f.msg.SendMessage(ctx, participantID, MsgAskVaccinated)
}

func (f *IntakeFlow) handleAskVaccinated(ctx context.Context, participantID, message string) error {
	switch intent.ClassifyYesNo(message) {
	case intent.Yes:
		if err := f.stateManager.SetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyVaccinated, "true"); err != nil {
			return err
		}
		if err := f.msg.SendMessage(ctx, participantID, MsgVaccinatedGood); err != nil {
			return err
		}
		if err := f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateSuggestSpecialist); err != nil {
			return err
		}
		return f.suggestSpecialist(ctx, participantID)
	case intent.No:
		if err := f.stateManager.SetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyVaccinated, "false"); err != nil {
			return err
		}
		if err := f.msg.SendMessage(ctx, participantID, MsgVaccinationRisk); err != nil {
			return err
		}
		// Location comes next so a center can actually be proposed.
		if err := f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateEnsureLocationForVaccination); err != nil {
			return err
		}
		return f.ensureLocationPreface(ctx, participantID)
	default:
		return f.msg.SendMessage(ctx, participantID, MsgVaccinatedRetry)
	}
}

// ensureLocationPreface either moves straight to the center offer (location
// or city already known) or asks for geolocation consent.
func (f *IntakeFlow) ensureLocationPreface(ctx context.Context, participantID string) error {
	known, err := f.hasLocationOrCity(ctx, participantID)
	if err != nil {
		return err
	}
	if known {
		if err := f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateOfferVaccinationCenter); err != nil {
			return err
		}
		return f.msg.SendMessage(ctx, participantID, MsgOfferCenter)
	}
	if err := f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateEnsureLocationGeoConsent); err != nil {
		return err
	}
	return f.msg.SendMessage(ctx, participantID, MsgGeoConsentVaccination)
}

func (f *IntakeFlow) handleEnsureLocationGeoConsent(ctx context.Context, participantID, message string, turn int64) error {
	switch intent.ClassifyYesNo(message) {
	case intent.Yes:
		// Resolution is asynchronous; the orchestrator advances the flow
		// from its completion callback.
		return f.orchestrator.GeolocateForVaccination(ctx, participantID, turn)
	case intent.No:
		if err := f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateEnsureLocationAwaitCity); err != nil {
			return err
		}
		return f.msg.SendMessage(ctx, participantID, MsgAskCityVaccination)
	default:
		return f.msg.SendMessage(ctx, participantID, MsgGeoConsentVaccination)
	}
}

func (f *IntakeFlow) handleEnsureLocationAwaitCity(ctx context.Context, participantID, message string) error {
	if err := f.stateManager.SetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyLastCity, message); err != nil {
		return err
	}
	if err := f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateOfferVaccinationCenter); err != nil {
		return err
	}
	return f.msg.SendMessage(ctx, participantID, MsgOfferCenter)
}

func (f *IntakeFlow) handleOfferVaccinationCenter(ctx context.Context, participantID, message string) error {
	switch intent.ClassifyYesNo(message) {
	case intent.Yes:
		if err := f.orchestrator.ProposeNearbyFacilities(ctx, participantID); err != nil {
			return err
		}
		if err := f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateSuggestSpecialist); err != nil {
			return err
		}
		return f.suggestSpecialist(ctx, participantID)
	case intent.No:
		if err := f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateSuggestSpecialist); err != nil {
			return err
		}
		return f.suggestSpecialist(ctx, participantID)
	default:
		return f.msg.SendMessage(ctx, participantID, MsgOfferCenterRetry)
	}
}

// suggestSpecialist emits the specialist links when a location or city is
// known, and otherwise opens the location-or-city consent sub-dialogue.
func (f *IntakeFlow) suggestSpecialist(ctx context.Context, participantID string) error {
	known, err := f.hasLocationOrCity(ctx, participantID)
	if err != nil {
		return err
	}
	if !known {
		if err := f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateSpecialistGeoConsent); err != nil {
			return err
		}
		return f.msg.SendMessage(ctx, participantID, MsgSpecialistConsent)
	}
	if err := f.orchestrator.ProposeSpecialistLinks(ctx, participantID); err != nil {
		return err
	}
	return f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateEnd)
}

func (f *IntakeFlow) handleSpecialistGeoConsent(ctx context.Context, participantID, message string, turn int64) error {
	switch intent.ClassifyYesNo(message) {
	case intent.Yes:
		return f.orchestrator.GeolocateForSpecialist(ctx, participantID, turn)
	case intent.No:
		if err := f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateSpecialistAwaitCity); err != nil {
			return err
		}
		return f.msg.SendMessage(ctx, participantID, MsgAskCitySpecialist)
	default:
		return f.msg.SendMessage(ctx, participantID, MsgSpecialistConsentRetry)
	}
}

func (f *IntakeFlow) handleSpecialistAwaitCity(ctx context.Context, participantID, message string) error {
	if err := f.stateManager.SetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyLastCity, message); err != nil {
		return err
	}
	if err := f.orchestrator.ProposeSpecialistLinks(ctx, participantID); err != nil {
		return err
	}
	return f.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateEnd)
}

func (f *IntakeFlow) handleEnd(ctx context.Context, participantID, message string) error {
	switch intent.Detect(message, false) {
	case intent.IntentGreeting:
		return f.msg.SendMessage(ctx, participantID, MsgEndGreeting)
	case intent.IntentThanks:
		return f.msg.SendMessage(ctx, participantID, MsgEndThanks)
	default:
		return f.msg.SendMessage(ctx, participantID, MsgStillAvailable)
	}
}

// bumpTurn increments and returns the session turn counter. Asynchronous
// completions issued before the bump become stale and are dropped by the
// orchestrator.
func (f *IntakeFlow) bumpTurn(ctx context.Context, participantID string) (int64, error) {
	raw, err := f.stateManager.GetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyTurn)
	if err != nil {
		return 0, fmt.Errorf("failed to read turn counter: %w", err)
	}
	var turn int64
	if raw != "" {
		turn, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			slog.Warn("IntakeFlow.bumpTurn: malformed turn counter, resetting", "participantID", participantID, "value", raw)
			turn = 0
		}
	}
	turn++
	if err := f.stateManager.SetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyTurn, strconv.FormatInt(turn, 10)); err != nil {
		return 0, fmt.Errorf("failed to store turn counter: %w", err)
	}
	return turn, nil
}

func (f *IntakeFlow) hasLocationOrCity(ctx context.Context, participantID string) (bool, error) {
	lat, err := f.stateManager.GetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyLatitude)
	if err != nil {
		return false, err
	}
	if lat != "" {
		return true, nil
	}
	city, err := f.stateManager.GetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyLastCity)
	if err != nil {
		return false, err
	}
	return city != "", nil
}

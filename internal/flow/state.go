// Package flow defines state management interfaces for stateful flows.
package flow

import (
	"context"
	"time"

	"github.com/vaccibot/vaccibot/internal/models"
)

// StateManager defines the interface for managing flow state.
type StateManager interface {
	// GetCurrentState retrieves the current step for a participant in a flow
	GetCurrentState(ctx context.Context, participantID string, flowType models.FlowType) (models.StateType, error)

	// SetCurrentState updates the current step for a participant in a flow
	SetCurrentState(ctx context.Context, participantID string, flowType models.FlowType, state models.StateType) error

	// GetStateData retrieves additional data associated with the participant's state
	GetStateData(ctx context.Context, participantID string, flowType models.FlowType, key models.DataKey) (string, error)

	// SetStateData stores additional data associated with the participant's state
	SetStateData(ctx context.Context, participantID string, flowType models.FlowType, key models.DataKey, value string) error

	// TransitionState transitions from one step to another
	TransitionState(ctx context.Context, participantID string, flowType models.FlowType, fromState, toState models.StateType) error

	// ResetState removes all state data for a participant in a flow
	ResetState(ctx context.Context, participantID string, flowType models.FlowType) error
}

// MessagingService is the delivery surface the flow needs: it sends replies
// to the presentation sink, optionally after a typing delay.
type MessagingService interface {
	SendMessage(ctx context.Context, to, body string) error
	SendMessageWithDelay(ctx context.Context, to, body string, delay time.Duration) error
}

// Orchestrator composes facility lookup, specialist resolution, and
// geolocation into user-facing actions. The geolocation variants return
// immediately; their completions mutate session state via a callback unless
// the session turn has moved past the issuing turn.
type Orchestrator interface {
	ProposeNearbyFacilities(ctx context.Context, participantID string) error
	ProposeSpecialistLinks(ctx context.Context, participantID string) error
	GeolocateForVaccination(ctx context.Context, participantID string, turn int64) error
	GeolocateForSpecialist(ctx context.Context, participantID string, turn int64) error
}

// Dependencies holds all dependencies that can be injected into flows.
type Dependencies struct {
	StateManager StateManager
	Messaging    MessagingService
	Orchestrator Orchestrator
}

// Package store provides storage backends for Vaccibot flow state.
//
// It includes an in-memory store (the default, matching the single-session
// lifetime of a conversation) and SQLite/PostgreSQL backends selected by DSN
// for operators who want a durable record of a running session.
package store

import (
	"strings"
	"sync"
	"time"

	"github.com/vaccibot/vaccibot/internal/models"
)

// Store persists per-participant flow state.
type Store interface {
	// SaveFlowState stores or updates flow state for a participant.
	SaveFlowState(state models.FlowState) error

	// GetFlowState retrieves flow state for a participant, or nil when absent.
	GetFlowState(participantID, flowType string) (*models.FlowState, error)

	// DeleteFlowState removes flow state for a participant.
	DeleteFlowState(participantID, flowType string) error

	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration for store construction.
type Opts struct {
	DSN string
}

// Option configures store construction.
type Option func(*Opts)

// WithDSN sets the database DSN.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// NewFromDSN selects a backend from the DSN shape: empty means in-memory,
// postgres://-style URLs mean PostgreSQL, anything else is treated as an
// SQLite file path.
func NewFromDSN(dsn string) (Store, error) {
	switch {
	case dsn == "":
		return NewInMemoryStore(), nil
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresStore(WithDSN(dsn))
	default:
		return NewSQLiteStore(WithDSN(dsn))
	}
}

// InMemoryStore keeps flow state in a map. It is the default backend; state
// vanishes with the process, which matches the session-scoped lifecycle of a
// conversation.
type InMemoryStore struct {
	mu         sync.RWMutex
	flowStates map[string]models.FlowState
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{flowStates: make(map[string]models.FlowState)}
}

func flowStateKey(participantID, flowType string) string {
	return participantID + "|" + flowType
}

// SaveFlowState stores or updates flow state for a participant.
func (s *InMemoryStore) SaveFlowState(state models.FlowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = time.Now()
	}
	state.UpdatedAt = time.Now()
	s.flowStates[flowStateKey(state.ParticipantID, string(state.FlowType))] = cloneFlowState(state)
	return nil
}

// GetFlowState retrieves flow state for a participant, or nil when absent.
func (s *InMemoryStore) GetFlowState(participantID, flowType string) (*models.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.flowStates[flowStateKey(participantID, flowType)]
	if !ok {
		return nil, nil
	}
	out := cloneFlowState(state)
	return &out, nil
}

// DeleteFlowState removes flow state for a participant.
func (s *InMemoryStore) DeleteFlowState(participantID, flowType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flowStates, flowStateKey(participantID, flowType))
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// cloneFlowState copies a FlowState so callers never share the StateData map.
func cloneFlowState(state models.FlowState) models.FlowState {
	if state.StateData != nil {
		data := make(map[models.DataKey]string, len(state.StateData))
		for k, v := range state.StateData {
			data[k] = v
		}
		state.StateData = data
	}
	return state
}

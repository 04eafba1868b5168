package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/vaccibot/vaccibot/internal/models"
)

func TestInMemoryStoreFlowStateRoundTrip(t *testing.T) {
	s := NewInMemoryStore()

	got, err := s.GetFlowState("p1", string(models.FlowTypeIntake))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing state, got %+v", got)
	}

	state := models.FlowState{
		ParticipantID: "p1",
		FlowType:      models.FlowTypeIntake,
		CurrentState:  models.StateAskAge,
		StateData:     map[models.DataKey]string{models.DataKeyAge: "34"},
		CreatedAt:     time.Now(),
	}
	if err := s.SaveFlowState(state); err != nil {
		t.Fatalf("SaveFlowState failed: %v", err)
	}

	got, err = s.GetFlowState("p1", string(models.FlowTypeIntake))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored state, got nil")
	}
	if got.CurrentState != models.StateAskAge {
		t.Errorf("current state = %s, want %s", got.CurrentState, models.StateAskAge)
	}
	if got.StateData[models.DataKeyAge] != "34" {
		t.Errorf("age = %q, want 34", got.StateData[models.DataKeyAge])
	}

	// Mutating the returned map must not affect the stored copy.
	got.StateData[models.DataKeyAge] = "99"
	again, _ := s.GetFlowState("p1", string(models.FlowTypeIntake))
	if again.StateData[models.DataKeyAge] != "34" {
		t.Error("store returned a shared StateData map")
	}

	if err := s.DeleteFlowState("p1", string(models.FlowTypeIntake)); err != nil {
		t.Fatalf("DeleteFlowState failed: %v", err)
	}
	got, _ = s.GetFlowState("p1", string(models.FlowTypeIntake))
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestSQLiteStoreFlowStateRoundTrip(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "vaccibot.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	state := models.FlowState{
		ParticipantID: "local",
		FlowType:      models.FlowTypeIntake,
		CurrentState:  models.StateAskDuration,
		StateData: map[models.DataKey]string{
			models.DataKeySymptoms: "fièvre et toux",
			models.DataKeyTurn:     "4",
		},
	}
	if err := s.SaveFlowState(state); err != nil {
		t.Fatalf("SaveFlowState failed: %v", err)
	}

	got, err := s.GetFlowState("local", string(models.FlowTypeIntake))
	if err != nil {
		t.Fatalf("GetFlowState failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored state, got nil")
	}
	if got.CurrentState != models.StateAskDuration {
		t.Errorf("current state = %s, want %s", got.CurrentState, models.StateAskDuration)
	}
	if got.StateData[models.DataKeySymptoms] != "fièvre et toux" {
		t.Errorf("symptoms = %q", got.StateData[models.DataKeySymptoms])
	}

	// Upsert path.
	state.CurrentState = models.StateAskVaccinated
	if err := s.SaveFlowState(state); err != nil {
		t.Fatalf("SaveFlowState upsert failed: %v", err)
	}
	got, _ = s.GetFlowState("local", string(models.FlowTypeIntake))
	if got.CurrentState != models.StateAskVaccinated {
		t.Errorf("after upsert, current state = %s, want %s", got.CurrentState, models.StateAskVaccinated)
	}

	if err := s.DeleteFlowState("local", string(models.FlowTypeIntake)); err != nil {
		t.Fatalf("DeleteFlowState failed: %v", err)
	}
	got, _ = s.GetFlowState("local", string(models.FlowTypeIntake))
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestNewFromDSNSelection(t *testing.T) {
	s, err := NewFromDSN("")
	if err != nil {
		t.Fatalf("NewFromDSN empty failed: %v", err)
	}
	if _, ok := s.(*InMemoryStore); !ok {
		t.Errorf("expected InMemoryStore for empty DSN, got %T", s)
	}

	dsn := filepath.Join(t.TempDir(), "state.db")
	s, err = NewFromDSN(dsn)
	if err != nil {
		t.Fatalf("NewFromDSN sqlite failed: %v", err)
	}
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("expected SQLiteStore for file DSN, got %T", s)
	}
	s.Close()
}

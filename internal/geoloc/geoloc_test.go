package geoloc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vaccibot/vaccibot/internal/models"
)

func TestRequesterDeliversPosition(t *testing.T) {
	r := NewRequester(StaticProvider{Pos: models.Position{Latitude: 45.76, Longitude: 4.83}})
	results := make(chan Result, 1)
	r.Request(context.Background(), 7, func(res Result) { results <- res })

	select {
	case res := <-results:
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if res.Turn != 7 {
			t.Errorf("turn = %d, want 7", res.Turn)
		}
		if res.Pos.Latitude != 45.76 || res.Pos.Longitude != 4.83 {
			t.Errorf("unexpected position: %+v", res.Pos)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}
}

func TestRequesterDeliversDenial(t *testing.T) {
	r := NewRequester(DeniedProvider{})
	results := make(chan Result, 1)
	r.Request(context.Background(), 3, func(res Result) { results <- res })

	select {
	case res := <-results:
		if !errors.Is(res.Err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", res.Err)
		}
		if res.Turn != 3 {
			t.Errorf("turn = %d, want 3", res.Turn)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}
}

func TestRequestSurvivesCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // the issuing turn is already over

	r := NewRequester(StaticProvider{Pos: models.Position{Latitude: 1, Longitude: 2}})
	results := make(chan Result, 1)
	r.Request(ctx, 1, func(res Result) { results <- res })

	select {
	case res := <-results:
		if res.Err != nil {
			t.Fatalf("expected position despite canceled caller context, got %v", res.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}
}

// Package geoloc abstracts the device geolocation provider and provides an
// asynchronous request helper whose completions are tagged with the session
// turn that issued them, so stale results can be discarded.
package geoloc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vaccibot/vaccibot/internal/models"
)

// ErrUnavailable is returned when the device position cannot be obtained,
// whether denied, unsupported, or timed out. Denial is an expected alternate
// path, not a failure of the flow.
var ErrUnavailable = errors.New("geolocation unavailable")

// Provider yields the device's current position. Implementations wrap
// whatever position source the host environment offers.
type Provider interface {
	CurrentPosition(ctx context.Context) (models.Position, error)
}

// StaticProvider always reports a fixed position. The console binary uses it
// when the operator configures coordinates through the environment.
type StaticProvider struct {
	Pos models.Position
}

// CurrentPosition returns the configured position.
func (p StaticProvider) CurrentPosition(ctx context.Context) (models.Position, error) {
	return p.Pos, nil
}

// DeniedProvider always reports the position as unavailable, standing in for
// a user who declines the geolocation prompt.
type DeniedProvider struct{}

// CurrentPosition always returns ErrUnavailable.
func (DeniedProvider) CurrentPosition(ctx context.Context) (models.Position, error) {
	return models.Position{}, ErrUnavailable
}

// DefaultTimeout bounds how long a position request may take.
const DefaultTimeout = 10 * time.Second

// Result is the outcome of one asynchronous position request. Turn is the
// session turn counter at the moment the request was issued.
type Result struct {
	Turn int64
	Pos  models.Position
	Err  error
}

// Requester runs position requests asynchronously against a Provider.
type Requester struct {
	provider Provider
	timeout  time.Duration
}

// NewRequester creates a Requester with the default timeout.
func NewRequester(provider Provider) *Requester {
	return &Requester{provider: provider, timeout: DefaultTimeout}
}

// Request resolves the current position on a separate goroutine and delivers
// the outcome to done exactly once. Control returns to the caller
// immediately. The callback receives the turn the request was issued at; it
// is the callback's responsibility to drop the result when the session has
// moved on.
func (r *Requester) Request(ctx context.Context, turn int64, done func(Result)) {
	slog.Debug("Requester.Request: issuing position request", "turn", turn)
	go func() {
		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		pos, err := r.provider.CurrentPosition(reqCtx)
		if err != nil {
			slog.Debug("Requester.Request: position unavailable", "turn", turn, "error", err)
			done(Result{Turn: turn, Err: err})
			return
		}
		slog.Debug("Requester.Request: position obtained", "turn", turn, "lat", pos.Latitude, "lon", pos.Longitude)
		done(Result{Turn: turn, Pos: pos})
	}()
}

// Package messaging provides the message delivery abstraction between the
// dialogue flow and the presentation sink.
package messaging

import (
	"context"
	"time"

	"github.com/vaccibot/vaccibot/internal/models"
)

// Service defines a pluggable message delivery abstraction.
// It supports sending messages and provides a channel of incoming user
// responses. Message bodies may carry the simple markup subset (<b>, <i>,
// <br>, <a href>); each implementation renders it as its sink allows.
type Service interface {
	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// SendMessageWithDelay sends a message after simulating typing for the
	// given duration.
	SendMessageWithDelay(ctx context.Context, to string, body string, delay time.Duration) error

	// Start begins any background processing (e.g., reading user input).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming user responses.
	Responses() <-chan models.Response
}

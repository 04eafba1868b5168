package messaging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/vaccibot/vaccibot/internal/models"
)

// DefaultTypingDelay simulates the bot typing before each reply.
const DefaultTypingDelay = 600 * time.Millisecond

// responseBuffer bounds how many unread user lines are queued.
const responseBuffer = 16

var (
	brRe     = regexp.MustCompile(`(?i)<br\s*/?>`)
	anchorRe = regexp.MustCompile(`(?is)<a\s+href="([^"]+)"[^>]*>(.*?)</a>`)
	tagRe    = regexp.MustCompile(`(?s)</?[bi]>`)
)

// RenderPlain converts the simple markup subset to terminal-friendly text:
// <br> becomes a newline, anchors become "label : url", and emphasis tags
// are stripped.
func RenderPlain(body string) string {
	out := brRe.ReplaceAllString(body, "\n")
	out = anchorRe.ReplaceAllString(out, "$2 : $1")
	out = tagRe.ReplaceAllString(out, "")
	return strings.TrimRight(out, "\n")
}

var _ Service = (*ConsoleService)(nil)

// ConsoleService delivers bot replies to a terminal and reads user input
// line by line. One reader goroutine feeds the Responses channel; submission
// is naturally non-reentrant because a terminal produces one line at a time.
type ConsoleService struct {
	in          io.Reader
	out         io.Writer
	participant string
	typingDelay time.Duration

	responses chan models.Response
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// ConsoleOption configures a ConsoleService.
type ConsoleOption func(*ConsoleService)

// WithTypingDelay overrides the default typing delay. Zero disables it.
func WithTypingDelay(d time.Duration) ConsoleOption {
	return func(s *ConsoleService) { s.typingDelay = d }
}

// NewConsoleService creates a console transport reading user lines from in
// and printing bot replies to out. participant identifies the single local
// user on the Responses channel.
func NewConsoleService(in io.Reader, out io.Writer, participant string, opts ...ConsoleOption) *ConsoleService {
	s := &ConsoleService{
		in:          in,
		out:         out,
		participant: participant,
		typingDelay: DefaultTypingDelay,
		responses:   make(chan models.Response, responseBuffer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendMessage prints a bot reply after the default typing delay.
func (s *ConsoleService) SendMessage(ctx context.Context, to, body string) error {
	return s.SendMessageWithDelay(ctx, to, body, s.typingDelay)
}

// SendMessageWithDelay prints a bot reply after the given typing delay.
func (s *ConsoleService) SendMessageWithDelay(ctx context.Context, to, body string, delay time.Duration) error {
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if _, err := fmt.Fprintf(s.out, "\n%s\n", RenderPlain(body)); err != nil {
		return fmt.Errorf("failed to write reply: %w", err)
	}
	return nil
}

// Start launches the input reader goroutine.
func (s *ConsoleService) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		readCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		go s.readLoop(readCtx)
	})
	return nil
}

// Stop shuts down the reader and closes the Responses channel.
func (s *ConsoleService) Stop() error {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		close(s.done)
	})
	return nil
}

// Responses returns the channel of incoming user lines.
func (s *ConsoleService) Responses() <-chan models.Response {
	return s.responses
}

func (s *ConsoleService) readLoop(ctx context.Context) {
	defer close(s.responses)
	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		resp := models.Response{From: s.participant, Body: line, Time: time.Now()}
		select {
		case s.responses <- resp:
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Error("ConsoleService.readLoop: input read failed", "error", err)
	}
	slog.Debug("ConsoleService.readLoop: input closed")
}

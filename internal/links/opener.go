package links

import (
	"log/slog"
	"os/exec"
)

// Opener opens an external URL on behalf of the user. Outbound navigation is
// an external collaborator; the flow only ever hands it fully built URLs.
type Opener interface {
	Open(url string) error
}

// LogOpener records the URL instead of launching anything. It is the default
// when the environment has no browser to hand off to.
type LogOpener struct{}

// Open logs the URL at info level.
func (LogOpener) Open(url string) error {
	slog.Info("LogOpener: outbound link", "url", url)
	return nil
}

// BrowserOpener hands the URL to the desktop via xdg-open.
type BrowserOpener struct{}

// Open launches the URL in the user's browser.
func (BrowserOpener) Open(url string) error {
	slog.Debug("BrowserOpener: opening url", "url", url)
	if err := exec.Command("xdg-open", url).Start(); err != nil {
		slog.Error("BrowserOpener: failed to open url", "error", err, "url", url)
		return err
	}
	return nil
}

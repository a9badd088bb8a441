// Package notify turns wallet events into desktop notifications.
package notify

import (
	"errors"

	"github.com/gen2brain/beeep"
)

// Title is the summary of every desktop notification.
const Title = "CLI Wallet"

// ErrDisabled is returned by the disabled sink.
var ErrDisabled = errors.New("desktop notifications disabled")

// Sink shows a notification. It may block and may fail when no
// notification daemon is available.
type Sink interface {
	Notify(title, body string) error
}

// DesktopSink sends notifications to the desktop environment.
type DesktopSink struct{}

// Notify implements Sink.
func (DesktopSink) Notify(title, body string) error {
	return beeep.Notify(title, body, "")
}

// DisabledSink always fails so that every event falls back to stdout.
type DisabledSink struct{}

// Notify implements Sink.
func (DisabledSink) Notify(title, body string) error {
	return ErrDisabled
}

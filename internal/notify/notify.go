// Package notify defines the events the sign session emits and the sinks
// that render them (speech, tray, websocket clients, logs).
package notify

import (
	"fmt"
	"log/slog"
	"time"
)

// Kind identifies an event.
type Kind string

const (
	SignSaved             Kind = "sign_saved"
	SignDeleted           Kind = "sign_deleted"
	AllSignsCleared       Kind = "all_signs_cleared"
	ClassificationChanged Kind = "classification_changed"
	SessionStarted        Kind = "session_started"
	SessionStopped        Kind = "session_stopped"
	// SignAnnounced asks sinks to read a stored sign's name aloud.
	SignAnnounced Kind = "sign_announced"
)

// Event is a discrete notification. Name is the sign involved, if any;
// for ClassificationChanged an empty Name with Matched false means no match.
type Event struct {
	Kind    Kind      `json:"kind"`
	Name    string    `json:"name,omitempty"`
	Matched bool      `json:"matched,omitempty"`
	Mode    string    `json:"mode,omitempty"`
	Session string    `json:"session,omitempty"`
	Time    time.Time `json:"time"`
}

// Notifier receives events. Implementations must not call back into the
// session controller synchronously.
type Notifier interface {
	Notify(e Event)
}

// Func adapts a function to a Notifier.
type Func func(Event)

// Notify calls f(e).
func (f Func) Notify(e Event) { f(e) }

// Multi fans out to every non-nil notifier, in order.
type Multi []Notifier

// Notify delivers e to each notifier.
func (m Multi) Notify(e Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(e)
		}
	}
}

// Discard drops every event.
var Discard Notifier = Func(func(Event) {})

// Logger logs every event at info level.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a Logger notifier.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With("component", "events")}
}

// Notify logs e.
func (l *Logger) Notify(e Event) {
	attrs := []any{"kind", e.Kind}
	if e.Name != "" {
		attrs = append(attrs, "sign", e.Name)
	}
	if e.Mode != "" {
		attrs = append(attrs, "mode", e.Mode)
	}
	if e.Session != "" {
		attrs = append(attrs, "session", e.Session)
	}
	if e.Kind == ClassificationChanged {
		attrs = append(attrs, "matched", e.Matched)
	}
	l.logger.Info("event", attrs...)
}

// Phrase is the sentence spoken for e, or "" when e should stay silent.
func Phrase(e Event) string {
	switch e.Kind {
	case SignSaved:
		return fmt.Sprintf("Saved %s successfully!", e.Name)
	case SignDeleted:
		return "Sign deleted successfully!"
	case AllSignsCleared:
		return "All signs cleared."
	case SessionStarted:
		return fmt.Sprintf("%s started, camera is now active.", modeTitle(e.Mode))
	case SessionStopped:
		return fmt.Sprintf("%s stopped, camera is now inactive.", modeTitle(e.Mode))
	case ClassificationChanged:
		if e.Matched {
			return e.Name
		}
		return ""
	case SignAnnounced:
		return e.Name
	}
	return ""
}

func modeTitle(mode string) string {
	switch mode {
	case "training":
		return "Training"
	case "detecting":
		return "Detection"
	}
	return "Session"
}

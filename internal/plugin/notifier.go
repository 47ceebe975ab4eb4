package plugin

import (
	"context"
	"log/slog"

	"github.com/ayusman/mudra/internal/notify"
)

// ActionSpeak is the action sent to speech plugins.
const ActionSpeak = "speak"

// speechQueue bounds pending utterances; newer events are dropped when full.
const speechQueue = 16

// SpeechNotifier turns session events into "speak" requests for a plugin.
// Notify only enqueues; a single worker started by Run executes requests
// in order so utterances never overlap.
type SpeechNotifier struct {
	plugin *Plugin
	exec   *Executor
	logger *slog.Logger

	queue chan *Request
}

// NewSpeechNotifier creates a notifier for plugin, which must support ActionSpeak.
func NewSpeechNotifier(plugin *Plugin, exec *Executor, logger *slog.Logger) *SpeechNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpeechNotifier{
		plugin: plugin,
		exec:   exec,
		logger: logger.With("component", "speech", "plugin", plugin.Manifest.Name),
		queue:  make(chan *Request, speechQueue),
	}
}

// Notify enqueues the spoken phrase for e, if any.
func (s *SpeechNotifier) Notify(e notify.Event) {
	if !s.plugin.Wants(string(e.Kind)) {
		return
	}
	text := notify.Phrase(e)
	if text == "" {
		return
	}

	req := &Request{Action: ActionSpeak, Event: string(e.Kind), Sign: e.Name, Text: text}
	select {
	case s.queue <- req:
	default:
		s.logger.Warn("speech queue full, dropping", "event", e.Kind, "text", text)
	}
}

// Run executes queued requests until ctx is done.
func (s *SpeechNotifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-s.queue:
			resp, err := s.exec.Execute(ctx, s.plugin, req)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Warn("speech failed", "text", req.Text, "err", err)
			case !resp.Success:
				s.logger.Warn("speech plugin reported failure", "text", req.Text, "error", resp.Error)
			default:
				s.logger.Debug("spoke", "text", req.Text)
			}
		}
	}
}

// Pending returns the number of queued requests.
func (s *SpeechNotifier) Pending() int {
	return len(s.queue)
}

// Package session drives the sign trainer's idle, training and detecting
// modes and routes each incoming hand pose to capture or classification.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/notify"
	"github.com/ayusman/mudra/internal/signs"
)

// State is the active session mode.
type State string

const (
	Idle      State = "idle"
	Training  State = "training"
	Detecting State = "detecting"
)

var (
	// ErrInvalidTransition is returned when an action is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrEmptyInput marks a save with a blank name or no live pose. It is
	// logged at debug level and never returned.
	ErrEmptyInput = errors.New("blank sign name or no live pose")
)

// Thumbnailer captures the current frame as an encoded image.
type Thumbnailer interface {
	CaptureFrame() ([]byte, error)
}

// ThumbnailFunc adapts a function to a Thumbnailer.
type ThumbnailFunc func() ([]byte, error)

// CaptureFrame calls f.
func (f ThumbnailFunc) CaptureFrame() ([]byte, error) { return f() }

// Config holds the controller's collaborators.
type Config struct {
	Store      *signs.Store
	Matcher    *gesture.Matcher
	Thumbnails Thumbnailer     // optional
	Notifier   notify.Notifier // optional
	Logger     *slog.Logger    // optional
}

// Controller is the session state machine. All exported methods are safe
// for concurrent use. Frames are processed one at a time; a frame that
// arrives while another is being processed is dropped.
type Controller struct {
	store    *signs.Store
	matcher  *gesture.Matcher
	thumbs   Thumbnailer
	notifier notify.Notifier
	logger   *slog.Logger

	// frameGate admits at most one frame; held only by HandleFrame.
	frameGate sync.Mutex

	mu       sync.Mutex
	state    State
	session  string
	live     detector.Pose
	debounce gesture.Debouncer
	hooks    []func(State)
}

// New creates a Controller in the Idle state.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}
	matcher := cfg.Matcher
	if matcher == nil {
		matcher = gesture.NewMatcher(gesture.DefaultThreshold)
	}

	return &Controller{
		store:    cfg.Store,
		matcher:  matcher,
		thumbs:   cfg.Thumbnails,
		notifier: notifier,
		logger:   logger.With("component", "session"),
		state:    Idle,
	}
}

// OnStateChange registers fn to be called after every successful
// transition, outside the controller lock.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the ID of the active session, or "" when idle.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// LastClassification returns the last classification emitted in the
// current detecting session. ok is false when nothing has been emitted.
func (c *Controller) LastClassification() (last gesture.Classification, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.debounce.Last()
}

// HasLivePose reports whether a valid pose from the latest frame is held.
func (c *Controller) HasLivePose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live != nil
}

// Vocabulary returns the current vocabulary snapshot.
func (c *Controller) Vocabulary() signs.Vocabulary {
	return c.store.Snapshot()
}

// Threshold returns the classification threshold in use.
func (c *Controller) Threshold() float64 {
	return c.matcher.Threshold()
}

// StartTraining moves from Idle or Detecting to Training.
func (c *Controller) StartTraining() error {
	return c.transition(Training, Idle, Detecting)
}

// StopTraining moves from Training to Idle.
func (c *Controller) StopTraining() error {
	return c.transition(Idle, Training)
}

// StartDetecting moves from Idle or Training to Detecting.
func (c *Controller) StartDetecting() error {
	return c.transition(Detecting, Idle, Training)
}

// StopDetecting moves from Detecting to Idle and forgets the last classification.
func (c *Controller) StopDetecting() error {
	return c.transition(Idle, Detecting)
}

func (c *Controller) transition(to State, from ...State) error {
	c.mu.Lock()

	current := c.state
	if !slices.Contains(from, current) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, to)
	}

	if current != Idle {
		c.emit(notify.Event{Kind: notify.SessionStopped, Mode: string(current), Session: c.session})
	}

	c.state = to
	c.live = nil
	c.debounce.Reset()
	c.session = ""
	if to != Idle {
		c.session = uuid.NewString()
		c.emit(notify.Event{Kind: notify.SessionStarted, Mode: string(to), Session: c.session})
	}
	c.logger.Info("session state changed", "from", current, "to", to, "session", c.session)

	hooks := slices.Clone(c.hooks)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(to)
	}
	return nil
}

// HandleFrame consumes one pose from the pose source. A nil, empty or
// malformed pose means no hand is present. It reports whether the frame was
// processed: frames are ignored while Idle and dropped while another frame
// is in flight.
func (c *Controller) HandleFrame(pose detector.Pose) bool {
	if !c.frameGate.TryLock() {
		c.logger.Debug("frame dropped, previous frame still in flight")
		return false
	}
	defer c.frameGate.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Idle {
		return false
	}

	live, err := detector.Normalize(pose)
	if err != nil {
		if len(pose) > 0 {
			c.logger.Debug("treating malformed pose as no hand", "err", err)
		}
		live = nil
	}
	c.live = live

	if c.state != Detecting {
		return true
	}

	result := gesture.NoMatch
	if live != nil {
		result = c.matcher.Classify(live, c.store.Snapshot())
	}

	if c.debounce.Observe(result) {
		c.emit(notify.Event{
			Kind:    notify.ClassificationChanged,
			Name:    result.Name,
			Matched: result.Matched,
			Mode:    string(Detecting),
			Session: c.session,
		})
	}
	return true
}

// SaveSign stores the live pose under name. It is only allowed while
// Training. A blank name or a missing live pose is silently ignored and
// reported as saved == false with a nil error.
func (c *Controller) SaveSign(ctx context.Context, name string) (saved bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Training {
		return false, fmt.Errorf("%w: save sign while %s", ErrInvalidTransition, c.state)
	}

	name = strings.TrimSpace(name)
	if name == "" || c.live == nil {
		c.logger.Debug("save ignored", "err", ErrEmptyInput, "name", name, "live", c.live != nil)
		return false, nil
	}

	var thumb []byte
	if c.thumbs != nil {
		thumb, err = c.thumbs.CaptureFrame()
		if err != nil {
			c.logger.Warn("thumbnail capture failed, saving without image", "sign", name, "err", err)
			thumb = nil
		}
	}

	rec := signs.Record{Name: name, Landmarks: c.live, Thumbnail: thumb}
	err = c.store.Add(ctx, rec)
	if errors.Is(err, signs.ErrEmptyName) {
		return false, nil
	}

	c.emit(notify.Event{Kind: notify.SignSaved, Name: name, Mode: string(c.state), Session: c.session})
	return true, err
}

// DeleteSign removes the sign at index. It is allowed in every state.
func (c *Controller) DeleteSign(ctx context.Context, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed, err := c.store.Remove(ctx, index)
	if errors.Is(err, signs.ErrIndexOutOfRange) {
		return err
	}

	c.emit(notify.Event{Kind: notify.SignDeleted, Name: removed.Name, Mode: string(c.state), Session: c.session})
	return err
}

// ClearSigns removes every sign. It is allowed in every state.
func (c *Controller) ClearSigns(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.store.Clear(ctx)
	c.emit(notify.Event{Kind: notify.AllSignsCleared, Mode: string(c.state), Session: c.session})
	return err
}

// Announce asks the notifiers to read out the name of the sign at index.
func (c *Controller) Announce(index int) error {
	rec, err := c.store.At(index)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit(notify.Event{Kind: notify.SignAnnounced, Name: rec.Name, Mode: string(c.state), Session: c.session})
	return nil
}

// emit delivers e to the notifier. Callers hold c.mu so events are
// delivered in the order state changed.
func (c *Controller) emit(e notify.Event) {
	e.Time = time.Now()
	c.notifier.Notify(e)
}

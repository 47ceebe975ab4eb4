// Package app wires the camera pose source to the sign session controller.
package app

import (
	"log/slog"
	"sync"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/notify"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/signs"
)

// Config holds the application's collaborators and tuning.
type Config struct {
	Signs     *signs.Store
	Notifier  notify.Notifier
	Threshold float64

	// Camera and Detector default to device 0 and MediaPipe (falling back
	// to the mock detector) when nil.
	Camera       capture.Camera
	Detector     detector.Detector
	CameraID     int
	MotionThresh float64

	Logger *slog.Logger
}

// App owns the single long-lived pose subscription and runs it only while
// the session is training or detecting.
type App struct {
	source     *CameraSource
	controller *session.Controller
	logger     *slog.Logger

	mu  sync.Mutex
	sub *Subscription
}

// New creates an App. The vocabulary is not loaded; call Signs.Load first.
func New(config Config) *App {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	camera := config.Camera
	if camera == nil {
		opts := capture.DefaultOptions()
		opts.DeviceID = config.CameraID
		camera = capture.NewCamera(opts)
	}

	det := config.Detector
	if det == nil {
		if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig(), logger); err == nil {
			det = mp
			logger.Info("using MediaPipe hand detection")
		} else {
			logger.Warn("MediaPipe not available, using mock detector", "err", err)
			det = detector.NewMockDetector()
		}
	}

	source := NewCameraSource(camera, capture.NewMotionDetector(config.MotionThresh), det, logger)

	a := &App{
		source: source,
		logger: logger.With("component", "app"),
	}
	a.controller = session.New(session.Config{
		Store:      config.Signs,
		Matcher:    gesture.NewMatcher(config.Threshold),
		Thumbnails: source,
		Notifier:   config.Notifier,
		Logger:     logger,
	})
	a.controller.OnStateChange(func(session.State) { a.syncCapture() })

	return a
}

// Controller returns the session controller.
func (a *App) Controller() *session.Controller {
	return a.controller
}

// Source returns the pose source.
func (a *App) Source() *CameraSource {
	return a.source
}

// Capturing reports whether frames are being delivered to the controller.
func (a *App) Capturing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sub != nil
}

// syncCapture starts or stops the subscription to match the controller
// state. It re-reads the state so concurrent transitions settle on the
// latest one.
func (a *App) syncCapture() {
	a.mu.Lock()
	defer a.mu.Unlock()

	active := a.controller.State() != session.Idle
	switch {
	case active && a.sub == nil:
		sub, err := a.source.Subscribe(func(pose detector.Pose) {
			a.controller.HandleFrame(pose)
		})
		if err != nil {
			a.logger.Error("failed to start capture", "err", err)
			return
		}
		a.sub = sub
	case !active && a.sub != nil:
		a.sub.Cancel()
		a.sub = nil
	}
}

// Close stops capture and releases the camera and detector.
func (a *App) Close() error {
	a.mu.Lock()
	if a.sub != nil {
		a.sub.Cancel()
		a.sub = nil
	}
	a.mu.Unlock()

	return a.source.Close()
}

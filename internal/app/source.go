package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
)

// ErrNoFrame is returned when no frame has been captured yet.
var ErrNoFrame = errors.New("no frame captured yet")

// FrameHandler receives the first detected hand of every processed frame,
// or nil when no hand was found.
type FrameHandler func(pose detector.Pose)

// PoseSource produces hand poses from a video stream.
type PoseSource interface {
	Subscribe(h FrameHandler) (*Subscription, error)
}

// Subscription is a running delivery loop.
type Subscription struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newSubscription() *Subscription {
	return &Subscription{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Cancel stops delivery and waits until the handler will not be called
// again. It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

// Done is closed once the delivery loop has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// CameraSource runs a camera through motion gating and hand detection. At
// most one subscription is active; subscribing again replaces it. The latest
// raw frame is cached for thumbnails and the preview stream.
type CameraSource struct {
	camera   capture.Camera
	motion   *capture.MotionDetector
	detector detector.Detector
	logger   *slog.Logger

	mu  sync.Mutex
	sub *Subscription

	frameMu sync.RWMutex
	latest  gocv.Mat
	hasLast bool
}

// NewCameraSource creates a CameraSource. It takes ownership of camera, motion and det.
func NewCameraSource(camera capture.Camera, motion *capture.MotionDetector, det detector.Detector, logger *slog.Logger) *CameraSource {
	if logger == nil {
		logger = slog.Default()
	}
	if motion == nil {
		motion = capture.NewMotionDetector(capture.DefaultMotionThreshold)
	}
	return &CameraSource{
		camera:   camera,
		motion:   motion,
		detector: det,
		logger:   logger.With("component", "pose_source"),
		latest:   gocv.NewMat(),
	}
}

// Subscribe opens the camera and starts delivering poses to h.
func (s *CameraSource) Subscribe(h FrameHandler) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}

	if err := s.camera.Open(); err != nil {
		return nil, fmt.Errorf("open camera: %w", err)
	}

	sub := newSubscription()
	s.sub = sub
	go s.run(sub, h)

	s.logger.Info("pose source started")
	return sub, nil
}

// Running reports whether a subscription is delivering frames.
func (s *CameraSource) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return false
	}
	select {
	case <-s.sub.Done():
		return false
	default:
		return true
	}
}

// CaptureFrame returns the latest frame encoded as PNG.
func (s *CameraSource) CaptureFrame() ([]byte, error) {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()

	if !s.hasLast {
		return nil, ErrNoFrame
	}
	return capture.EncodePNG(&s.latest)
}

// ReadFrame returns a copy of the latest frame. The caller must close it.
func (s *CameraSource) ReadFrame() (*gocv.Mat, error) {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()

	if !s.hasLast {
		return nil, ErrNoFrame
	}
	frame := s.latest.Clone()
	return &frame, nil
}

func (s *CameraSource) remember(frame *gocv.Mat) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	frame.CopyTo(&s.latest)
	s.hasLast = true
}

// Close stops any subscription and releases the detector and cached frame.
func (s *CameraSource) Close() error {
	s.mu.Lock()
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
	s.mu.Unlock()

	s.motion.Close()

	s.frameMu.Lock()
	s.latest.Close()
	s.hasLast = false
	s.frameMu.Unlock()

	if s.detector != nil {
		return s.detector.Close()
	}
	return nil
}

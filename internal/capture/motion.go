package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame differencing parameters.
const (
	// GaussianBlurSize is the blur kernel applied before differencing.
	GaussianBlurSize = 21
	// DiffThreshold is the per-pixel intensity change counted as motion.
	DiffThreshold = 25
	// DefaultMotionThreshold is the percentage of changed pixels that counts as motion.
	DefaultMotionThreshold = 1.0
)

// Motion is the result of comparing a frame with its predecessor.
type Motion struct {
	Moving bool
	// Changed is the percentage of pixels that changed, 0-100.
	Changed float64
}

// MotionDetector compares consecutive frames using blurred grayscale
// differencing. The first frame after construction or Reset only sets the
// baseline.
type MotionDetector struct {
	mu        sync.Mutex
	threshold float64
	prevGray  gocv.Mat
	baseline  bool
}

// NewMotionDetector creates a detector that reports motion when more than
// threshold percent of pixels change. Values <= 0 use DefaultMotionThreshold.
func NewMotionDetector(threshold float64) *MotionDetector {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and keeps it as the new baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) Motion {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return Motion{}
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)

	// A size change (camera reconfigured) restarts the baseline.
	if !m.baseline || blurred.Rows() != m.prevGray.Rows() || blurred.Cols() != m.prevGray.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.baseline = true
		return Motion{}
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0
	blurred.CopyTo(&m.prevGray)

	return Motion{Moving: changed > m.threshold, Changed: changed}
}

// Reset forgets the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases native resources. The detector may still be used
// afterwards; the next frame becomes a new baseline.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionDetector) release() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.baseline = false
}

// Threshold returns the motion threshold in percent.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// SetThreshold changes the motion threshold. Values <= 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// Rate switches between an idle and an active frame rate: motion selects
// the active rate immediately, and the idle rate returns once no motion has
// been seen for Timeout.
type Rate struct {
	IdleFPS   int
	ActiveFPS int
	Timeout   time.Duration

	active     bool
	lastMotion time.Time
}

// DefaultRate returns a Rate of 5 idle and 15 active FPS with a 2s timeout.
func DefaultRate() *Rate {
	return &Rate{IdleFPS: 5, ActiveFPS: DefaultFPS, Timeout: 2 * time.Second}
}

// FPS returns the current frame rate.
func (r *Rate) FPS() int {
	if r.active {
		return r.ActiveFPS
	}
	return r.IdleFPS
}

// Active reports whether the active rate is selected.
func (r *Rate) Active() bool {
	return r.active
}

// Observe records one motion sample taken at now. It returns the frame
// rate to use and whether it changed.
func (r *Rate) Observe(m Motion, now time.Time) (fps int, changed bool) {
	switch {
	case m.Moving:
		r.lastMotion = now
		if !r.active {
			r.active = true
			return r.FPS(), true
		}
	case r.active && now.Sub(r.lastMotion) > r.Timeout:
		r.active = false
		return r.FPS(), true
	}
	return r.FPS(), false
}

package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a Detector whose results are set by the caller.
// It is safe to reconfigure while a pose source is polling it.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a MockDetector that reports no hands.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetPoses reports one right hand per pose.
func (m *MockDetector) SetPoses(poses ...Pose) {
	hands := make([]HandLandmarks, len(poses))
	for i, p := range poses {
		hands[i] = rightHand(p)
	}
	m.SetHands(hands)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the configured hands or error; the frame is ignored.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op.
func (m *MockDetector) Close() error {
	return nil
}

func rightHand(p Pose) HandLandmarks {
	return HandLandmarks{Points: p, Handedness: "Right", Score: 0.95}
}

// Preset poses in image coordinates, wrist near the bottom centre of the
// frame, one row per landmark in index order.
var (
	thumbsUp = [NumLandmarks]Point3D{
		{0.50, 0.80, 0.00}, // wrist
		{0.55, 0.75, 0.00}, {0.58, 0.65, 0.00}, {0.58, 0.50, 0.00}, {0.58, 0.35, 0.00}, // thumb raised
		{0.55, 0.70, -0.02}, {0.55, 0.68, -0.05}, {0.52, 0.70, -0.04}, {0.50, 0.72, -0.02}, // index curled
		{0.50, 0.68, -0.02}, {0.50, 0.66, -0.05}, {0.47, 0.68, -0.04}, {0.45, 0.70, -0.02}, // middle curled
		{0.45, 0.70, -0.02}, {0.45, 0.68, -0.05}, {0.42, 0.70, -0.04}, {0.40, 0.72, -0.02}, // ring curled
		{0.40, 0.72, -0.02}, {0.40, 0.70, -0.05}, {0.37, 0.72, -0.04}, {0.35, 0.74, -0.02}, // pinky curled
	}

	openPalm = [NumLandmarks]Point3D{
		{0.50, 0.80, 0.00}, // wrist
		{0.55, 0.75, 0.02}, {0.62, 0.70, 0.03}, {0.68, 0.65, 0.03}, {0.73, 0.60, 0.03}, // thumb out
		{0.55, 0.68, 0.00}, {0.57, 0.55, 0.00}, {0.58, 0.45, 0.00}, {0.58, 0.35, 0.00}, // index up
		{0.50, 0.66, 0.00}, {0.50, 0.52, 0.00}, {0.50, 0.40, 0.00}, {0.50, 0.28, 0.00}, // middle up
		{0.45, 0.68, 0.00}, {0.43, 0.55, 0.00}, {0.42, 0.45, 0.00}, {0.42, 0.35, 0.00}, // ring up
		{0.40, 0.70, 0.00}, {0.37, 0.60, 0.00}, {0.35, 0.50, 0.00}, {0.34, 0.42, 0.00}, // pinky up
	}
)

// ThumbsUpLandmarks returns a right hand with the thumb raised and the
// other fingers curled.
func ThumbsUpLandmarks() HandLandmarks {
	return rightHand(append(Pose(nil), thumbsUp[:]...))
}

// OpenPalmLandmarks returns a right hand with every finger extended.
func OpenPalmLandmarks() HandLandmarks {
	return rightHand(append(Pose(nil), openPalm[:]...))
}

package detector

import "gocv.io/x/gocv"

// Detector finds hands in a video frame.
type Detector interface {
	// Detect returns the hands found in frame, or an empty slice when there
	// are none.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect.
	MaxHands int

	// ModelComplexity selects the landmark model (0 lite, 1 full).
	ModelComplexity int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns the settings the sign trainer has always shipped with.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		ModelComplexity: 1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}

// Package detector provides hand detection interfaces, landmark types and
// the wrist-anchored normalization used for sign matching.
package detector

import (
	"errors"
	"fmt"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Anchor is the landmark that becomes the origin after normalization.
const Anchor = Wrist

// ErrInvalidPose is returned when a pose does not have exactly NumLandmarks points.
var ErrInvalidPose = errors.New("invalid pose")

// Point3D is a landmark position in normalized image space: x and y roughly
// in [0,1], z relative to the wrist depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns p - q component-wise.
func (p Point3D) Sub(q Point3D) Point3D {
	return Point3D{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// DistanceTo returns the Euclidean distance between p and q.
func (p Point3D) DistanceTo(q Point3D) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Pose is one frame's worth of hand landmarks, ordered by landmark index.
// Poses are treated as immutable once produced.
type Pose []Point3D

// Translate returns a copy of the pose shifted by t.
func (p Pose) Translate(t Point3D) Pose {
	out := make(Pose, len(p))
	for i, pt := range p {
		out[i] = Point3D{X: pt.X + t.X, Y: pt.Y + t.Y, Z: pt.Z + t.Z}
	}
	return out
}

// HandLandmarks is a single hand reported by a Detector.
type HandLandmarks struct {
	Points     Pose    `json:"points"`
	Handedness string  `json:"handedness"` // "Left" or "Right"
	Score      float64 `json:"score"`
}

// Pose returns the hand's landmarks, or nil for a nil hand.
func (h *HandLandmarks) Pose() Pose {
	if h == nil {
		return nil
	}
	return h.Points
}

// Normalize expresses every point of pose relative to the wrist, so the
// wrist becomes exactly (0,0,0) and absolute position in frame no longer
// matters. The input is not modified.
//
// Poses with a point count other than NumLandmarks, including empty ones,
// fail with ErrInvalidPose and produce no partial result.
func Normalize(pose Pose) (Pose, error) {
	if len(pose) != NumLandmarks {
		return nil, fmt.Errorf("%w: got %d points, want %d", ErrInvalidPose, len(pose), NumLandmarks)
	}

	anchor := pose[Anchor]
	out := make(Pose, len(pose))
	for i, p := range pose {
		out[i] = p.Sub(anchor)
	}
	return out, nil
}

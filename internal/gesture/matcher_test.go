package gesture

import (
	"math"
	"testing"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/signs"
)

// offsetPose returns a pose whose mean distance to p is exactly |d|,
// by shifting every point except the wrist along x by d*K/(K-1).
func offsetPose(p detector.Pose, d float64) detector.Pose {
	out := make(detector.Pose, len(p))
	copy(out, p)
	shift := d * float64(len(p)) / float64(len(p)-1)
	for i := 1; i < len(out); i++ {
		out[i].X += shift
	}
	return out
}

func normalized(t *testing.T, hand detector.HandLandmarks) detector.Pose {
	t.Helper()
	pose, err := detector.Normalize(hand.Pose())
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	return pose
}

func TestMeanDistance(t *testing.T) {
	a := normalized(t, detector.ThumbsUpLandmarks())

	t.Run("identical poses", func(t *testing.T) {
		d, ok := MeanDistance(a, a)
		if !ok {
			t.Fatal("expected comparable poses")
		}
		if d != 0 {
			t.Errorf("expected 0, got %f", d)
		}
	})

	t.Run("known offset", func(t *testing.T) {
		d, ok := MeanDistance(a, offsetPose(a, 0.01))
		if !ok {
			t.Fatal("expected comparable poses")
		}
		if math.Abs(d-0.01) > 1e-12 {
			t.Errorf("expected 0.01, got %f", d)
		}
	})

	t.Run("mean not sum", func(t *testing.T) {
		x := detector.Pose{{X: 0}, {X: 0}}
		y := detector.Pose{{X: 0}, {X: 2}}
		d, _ := MeanDistance(x, y)
		if d != 1 {
			t.Errorf("expected 1, got %f", d)
		}
	})

	t.Run("different cardinality is skipped", func(t *testing.T) {
		if _, ok := MeanDistance(a, a[:10]); ok {
			t.Error("expected poses of different length to be incomparable")
		}
		if _, ok := MeanDistance(nil, nil); ok {
			t.Error("expected empty poses to be incomparable")
		}
	})
}

func TestClassify(t *testing.T) {
	poseA := normalized(t, detector.OpenPalmLandmarks())
	poseB := normalized(t, detector.ThumbsUpLandmarks())

	vocab := signs.Vocabulary{
		{Name: "hello", Landmarks: poseA},
		{Name: "bye", Landmarks: poseB},
	}

	t.Run("close to first sign", func(t *testing.T) {
		name, ok := Classify(offsetPose(poseA, 0.01), vocab, DefaultThreshold)
		if !ok || name != "hello" {
			t.Errorf("expected hello, got %q (ok=%v)", name, ok)
		}
	})

	t.Run("close to second sign", func(t *testing.T) {
		name, ok := Classify(offsetPose(poseB, -0.02), vocab, DefaultThreshold)
		if !ok || name != "bye" {
			t.Errorf("expected bye, got %q (ok=%v)", name, ok)
		}
	})

	t.Run("far from both", func(t *testing.T) {
		far := offsetPose(poseA, 0.09)
		if d, _ := MeanDistance(far, poseB); d < DefaultThreshold {
			t.Fatalf("fixture too close to bye: %f", d)
		}

		name, ok := Classify(far, vocab, DefaultThreshold)
		if ok {
			t.Errorf("expected no match, got %q", name)
		}
	})

	t.Run("threshold is strict", func(t *testing.T) {
		v := signs.Vocabulary{{Name: "x", Landmarks: detector.Pose{{X: 0}, {X: 0}}}}
		live := detector.Pose{{X: 0}, {X: 0.5}}

		if _, ok := Classify(live, v, 0.25); ok {
			t.Error("distance equal to threshold must not match")
		}
		if _, ok := Classify(live, v, 0.2501); !ok {
			t.Error("distance below threshold must match")
		}
	})

	t.Run("empty vocabulary", func(t *testing.T) {
		if _, ok := Classify(poseA, nil, DefaultThreshold); ok {
			t.Error("expected no match against empty vocabulary")
		}
	})
}

func TestClassify_FirstMatchWins(t *testing.T) {
	pose := normalized(t, detector.OpenPalmLandmarks())

	// "near" is the closer sign but comes second.
	vocab := signs.Vocabulary{
		{Name: "far", Landmarks: offsetPose(pose, 0.03)},
		{Name: "near", Landmarks: pose},
	}

	name, ok := Classify(pose, vocab, DefaultThreshold)
	if !ok || name != "far" {
		t.Errorf("expected first qualifying sign 'far', got %q (ok=%v)", name, ok)
	}
}

func TestClassify_DuplicateNames(t *testing.T) {
	poseA := normalized(t, detector.OpenPalmLandmarks())
	poseB := normalized(t, detector.ThumbsUpLandmarks())

	vocab := signs.Vocabulary{
		{Name: "hi", Landmarks: poseA},
		{Name: "hi", Landmarks: poseB},
	}

	for _, live := range []detector.Pose{poseA, poseB} {
		if name, ok := Classify(live, vocab, DefaultThreshold); !ok || name != "hi" {
			t.Errorf("expected hi, got %q (ok=%v)", name, ok)
		}
	}
}

func TestClassify_SkipsStaleShapes(t *testing.T) {
	pose := normalized(t, detector.OpenPalmLandmarks())

	vocab := signs.Vocabulary{
		{Name: "stale", Landmarks: detector.Pose{{}}},
		{Name: "current", Landmarks: pose},
	}

	name, ok := Classify(pose, vocab, DefaultThreshold)
	if !ok || name != "current" {
		t.Errorf("expected current, got %q (ok=%v)", name, ok)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	pose := normalized(t, detector.ThumbsUpLandmarks())
	vocab := signs.Vocabulary{
		{Name: "a", Landmarks: offsetPose(pose, 0.035)},
		{Name: "b", Landmarks: offsetPose(pose, 0.01)},
	}

	first, firstOK := Classify(pose, vocab, DefaultThreshold)
	for i := 0; i < 100; i++ {
		name, ok := Classify(pose, vocab, DefaultThreshold)
		if name != first || ok != firstOK {
			t.Fatalf("call %d: got %q/%v, want %q/%v", i, name, ok, first, firstOK)
		}
	}
}

func TestMatcher(t *testing.T) {
	t.Run("default threshold", func(t *testing.T) {
		for _, th := range []float64{0, -1} {
			if got := NewMatcher(th).Threshold(); got != DefaultThreshold {
				t.Errorf("NewMatcher(%v).Threshold() = %v, want %v", th, got, DefaultThreshold)
			}
		}
	})

	t.Run("classification values", func(t *testing.T) {
		pose := normalized(t, detector.OpenPalmLandmarks())
		m := NewMatcher(0.1)
		vocab := signs.Vocabulary{{Name: "hello", Landmarks: pose}}

		if got := m.Classify(pose, vocab); got != Match("hello") {
			t.Errorf("expected hello match, got %v", got)
		}
		if got := m.Classify(offsetPose(pose, 0.5), vocab); got != NoMatch {
			t.Errorf("expected NoMatch, got %v", got)
		}
	})
}

func TestClassification_String(t *testing.T) {
	if NoMatch.String() != "none" {
		t.Errorf("expected none, got %s", NoMatch.String())
	}
	if Match("wave").String() != "wave" {
		t.Errorf("expected wave, got %s", Match("wave").String())
	}
}

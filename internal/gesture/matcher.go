// Package gesture classifies live hand poses against the trained vocabulary.
package gesture

import (
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/signs"
)

// DefaultThreshold is the mean per-landmark distance, in normalized image
// units, below which a live pose counts as the same sign as a stored one.
const DefaultThreshold = 0.04

// Classification is the outcome of classifying one pose. The zero value is
// NoMatch.
type Classification struct {
	Name    string
	Matched bool
}

// NoMatch is the classification when no stored sign is close enough, or no
// hand is present.
var NoMatch = Classification{}

// Match returns a matched classification for name.
func Match(name string) Classification {
	return Classification{Name: name, Matched: true}
}

// String returns the sign name, or "none".
func (c Classification) String() string {
	if !c.Matched {
		return "none"
	}
	return c.Name
}

// MeanDistance returns the mean Euclidean distance between corresponding
// points of a and b. ok is false when the poses have different lengths or
// are empty, in which case they must not be compared.
func MeanDistance(a, b detector.Pose) (d float64, ok bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var sum float64
	for i := range a {
		sum += a[i].DistanceTo(b[i])
	}
	return sum / float64(len(a)), true
}

// Classify returns the name of the first record, in vocabulary order, whose
// mean distance to live is below threshold. Later records are not examined
// even if they would be closer. Records with a different landmark count are
// skipped.
func Classify(live detector.Pose, vocab signs.Vocabulary, threshold float64) (string, bool) {
	for _, rec := range vocab {
		d, ok := MeanDistance(rec.Landmarks, live)
		if !ok {
			continue
		}
		if d < threshold {
			return rec.Name, true
		}
	}
	return "", false
}

// Matcher applies Classify with a fixed threshold.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a Matcher. A non-positive threshold selects DefaultThreshold.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Threshold returns the distance threshold in use.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Classify classifies live against vocab.
func (m *Matcher) Classify(live detector.Pose, vocab signs.Vocabulary) Classification {
	name, ok := Classify(live, vocab, m.threshold)
	if !ok {
		return NoMatch
	}
	return Match(name)
}

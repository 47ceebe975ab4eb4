package gesture

// Debouncer suppresses repeated identical classifications across frames.
// It is not safe for concurrent use; the session controller serializes it.
type Debouncer struct {
	last    Classification
	emitted bool
}

// Observe records c and reports whether it differs from the last emitted
// classification. The first observation after Reset always reports true.
func (d *Debouncer) Observe(c Classification) bool {
	if d.emitted && d.last == c {
		return false
	}
	d.last = c
	d.emitted = true
	return true
}

// Last returns the last emitted classification and whether anything has
// been emitted since the last Reset.
func (d *Debouncer) Last() (Classification, bool) {
	return d.last, d.emitted
}

// Reset forgets the last emitted classification.
func (d *Debouncer) Reset() {
	d.last = NoMatch
	d.emitted = false
}

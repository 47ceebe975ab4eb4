// Package signs holds the user's trained sign vocabulary and its persistence.
package signs

import (
	"errors"

	"github.com/ayusman/mudra/internal/detector"
)

var (
	// ErrIndexOutOfRange is returned when a record index does not exist.
	ErrIndexOutOfRange = errors.New("sign index out of range")

	// ErrEmptyName is returned when a record has a blank name.
	ErrEmptyName = errors.New("sign name is empty")

	// ErrPersistenceCorrupt is returned when persisted vocabulary data cannot be decoded.
	ErrPersistenceCorrupt = errors.New("persisted vocabulary is corrupt")

	// ErrNoVocabulary is returned by a Persistence that has nothing stored.
	ErrNoVocabulary = errors.New("no persisted vocabulary")
)

// Record is one trained sign: a label, the wrist-normalized pose captured
// when it was saved and a thumbnail of the frame at that moment.
// Records are never modified once stored.
type Record struct {
	Name      string
	Landmarks detector.Pose
	Thumbnail []byte // PNG
}

// Vocabulary is the ordered list of records. Order is insertion order and is
// also the order in which records are tried during classification.
type Vocabulary []Record

// Names returns the record names in vocabulary order.
func (v Vocabulary) Names() []string {
	names := make([]string, len(v))
	for i, r := range v {
		names[i] = r.Name
	}
	return names
}

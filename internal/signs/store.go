package signs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Persistence stores the encoded vocabulary as a single blob.
// LoadVocabulary returns ErrNoVocabulary when nothing has been saved yet.
type Persistence interface {
	LoadVocabulary(ctx context.Context) ([]byte, error)
	SaveVocabulary(ctx context.Context, data []byte) error
}

// Store owns the vocabulary. Readers get immutable snapshots; every
// mutation builds a new slice, swaps it in and rewrites the whole persisted
// vocabulary.
type Store struct {
	persist Persistence
	logger  *slog.Logger

	mu    sync.RWMutex
	vocab Vocabulary
}

// NewStore creates an empty Store backed by p.
func NewStore(p Persistence, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		persist: p,
		logger:  logger.With("component", "signs"),
	}
}

// Load replaces the in-memory vocabulary with the persisted one and returns it.
// Missing or corrupt data yields an empty vocabulary; corrupt data is
// logged and discarded.
func (s *Store) Load(ctx context.Context) Vocabulary {
	vocab := s.read(ctx)

	s.mu.Lock()
	s.vocab = vocab
	s.mu.Unlock()

	s.logger.Info("vocabulary loaded", "signs", len(vocab))
	return vocab
}

func (s *Store) read(ctx context.Context) Vocabulary {
	data, err := s.persist.LoadVocabulary(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoVocabulary) {
			s.logger.Warn("failed to read vocabulary, starting empty", "err", err)
		}
		return Vocabulary{}
	}

	vocab, err := Unmarshal(data)
	if err != nil {
		s.logger.Warn("discarding persisted vocabulary", "err", err)
		return Vocabulary{}
	}
	return vocab
}

// Snapshot returns the current vocabulary. The returned slice is never
// modified by the Store, so it is safe to iterate without locking.
func (s *Store) Snapshot() Vocabulary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vocab
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vocab)
}

// At returns the record at index.
func (s *Store) At(index int) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.vocab) {
		return Record{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(s.vocab))
	}
	return s.vocab[index], nil
}

// Add appends rec. Duplicate names are allowed.
func (s *Store) Add(ctx context.Context, rec Record) error {
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		return ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(Vocabulary, len(s.vocab), len(s.vocab)+1)
	copy(next, s.vocab)
	next = append(next, rec)

	return s.commit(ctx, next)
}

// Remove deletes the record at index and returns it. Later records shift
// down by one.
func (s *Store) Remove(ctx context.Context, index int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.vocab) {
		return Record{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(s.vocab))
	}

	removed := s.vocab[index]
	next := make(Vocabulary, 0, len(s.vocab)-1)
	next = append(next, s.vocab[:index]...)
	next = append(next, s.vocab[index+1:]...)

	return removed, s.commit(ctx, next)
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, Vocabulary{})
}

// commit swaps in next and persists it. The in-memory vocabulary is updated
// even when the write fails; the error is returned to the caller.
// Callers hold s.mu.
func (s *Store) commit(ctx context.Context, next Vocabulary) error {
	s.vocab = next

	data, err := Marshal(next)
	if err != nil {
		s.logger.Error("failed to encode vocabulary", "err", err)
		return fmt.Errorf("encode vocabulary: %w", err)
	}
	if err := s.persist.SaveVocabulary(ctx, data); err != nil {
		s.logger.Error("failed to persist vocabulary", "signs", len(next), "err", err)
		return fmt.Errorf("save vocabulary: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayusman/mudra/internal/signs"
)

// VocabularyKey is the settings key holding the encoded vocabulary.
const VocabularyKey = "signs"

// Vocabulary persists the sign vocabulary as a single settings row.
// It implements signs.Persistence.
type Vocabulary struct {
	settings *SettingsRepository
}

// Vocabulary returns the vocabulary persistence for this store.
func (s *Store) Vocabulary() *Vocabulary {
	return &Vocabulary{settings: s.Settings()}
}

// LoadVocabulary returns the stored vocabulary, or signs.ErrNoVocabulary
// when none has been saved.
func (v *Vocabulary) LoadVocabulary(ctx context.Context) ([]byte, error) {
	st, err := v.settings.Get(ctx, VocabularyKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, signs.ErrNoVocabulary
		}
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	return []byte(st.Value), nil
}

// SaveVocabulary replaces the stored vocabulary with data.
func (v *Vocabulary) SaveVocabulary(ctx context.Context, data []byte) error {
	if err := v.settings.Set(ctx, VocabularyKey, string(data)); err != nil {
		return fmt.Errorf("save vocabulary: %w", err)
	}
	return nil
}

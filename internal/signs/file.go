package signs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic starts every zstd frame; files are sniffed so toggling
// compression does not strand previously written vocabularies.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// FilePersistence keeps the vocabulary in a single file, optionally zstd
// compressed. Writes go to a temporary file that is renamed into place.
type FilePersistence struct {
	path     string
	compress bool

	mu sync.Mutex
}

// NewFilePersistence creates a FilePersistence writing to path.
func NewFilePersistence(path string, compress bool) *FilePersistence {
	return &FilePersistence{path: path, compress: compress}
}

// Path returns the vocabulary file path.
func (f *FilePersistence) Path() string {
	return f.path
}

// LoadVocabulary reads the vocabulary file.
func (f *FilePersistence) LoadVocabulary(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoVocabulary
		}
		return nil, err
	}

	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceCorrupt, err)
	}
	return out, nil
}

// SaveVocabulary replaces the vocabulary file with data.
func (f *FilePersistence) SaveVocabulary(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if f.compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("create encoder: %w", err)
		}
		data = enc.EncodeAll(data, nil)
		enc.Close()
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write vocabulary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close vocabulary: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename vocabulary: %w", err)
	}
	return nil
}

// MemoryPersistence keeps the encoded vocabulary in memory.
type MemoryPersistence struct {
	mu    sync.Mutex
	data  []byte
	saves int
	err   error
}

// NewMemoryPersistence returns a MemoryPersistence preloaded with data;
// nil data means nothing is stored.
func NewMemoryPersistence(data []byte) *MemoryPersistence {
	return &MemoryPersistence{data: data}
}

// LoadVocabulary returns the stored bytes.
func (m *MemoryPersistence) LoadVocabulary(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNoVocabulary
	}
	return bytes.Clone(m.data), nil
}

// SaveVocabulary stores data, or fails with the error set by FailWith.
func (m *MemoryPersistence) SaveVocabulary(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data = bytes.Clone(data)
	m.saves++
	return nil
}

// FailWith makes subsequent saves return err; nil restores normal behaviour.
func (m *MemoryPersistence) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Saves returns how many successful saves have happened.
func (m *MemoryPersistence) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Data returns a copy of the stored bytes.
func (m *MemoryPersistence) Data() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.data)
}

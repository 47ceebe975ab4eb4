package signs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/detector"
)

func normalizedPose(t *testing.T, hand detector.HandLandmarks) detector.Pose {
	t.Helper()
	pose, err := detector.Normalize(hand.Pose())
	require.NoError(t, err)
	return pose
}

func sampleVocabulary(t *testing.T) Vocabulary {
	return Vocabulary{
		{Name: "hello", Landmarks: normalizedPose(t, detector.OpenPalmLandmarks()), Thumbnail: []byte("png-hello")},
		{Name: "yes", Landmarks: normalizedPose(t, detector.ThumbsUpLandmarks()), Thumbnail: []byte("png-yes")},
		{Name: "hello", Landmarks: normalizedPose(t, detector.ThumbsUpLandmarks())},
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s := NewStore(NewMemoryPersistence(nil), nil)

	vocab := s.Load(context.Background())

	assert.Empty(t, vocab)
	assert.Equal(t, 0, s.Len())
}

func TestStore_LoadCorrupt(t *testing.T) {
	inputs := map[string]string{
		"not json":        "{{{",
		"wrong shape":     `{"name":"x"}`,
		"blank name":      `[{"name":"  ","landmarks":[]}]`,
		"bad landmarks":   `[{"name":"a","landmarks":"nope"}]`,
		"no hands":        `[{"name":"a","landmarks":[[]]}]`,
		"bad image":       `[{"name":"a","landmarks":[],"image":"http://example.com/x.png"}]`,
		"bad base64":      `[{"name":"a","landmarks":[],"image":"data:image/png;base64,!!!"}]`,
		"null landmarks":  `[{"name":"a","landmarks":null}]`,
		"missing payload": `[{"name":"a","landmarks":[],"image":"data:image/png"}]`,
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			s := NewStore(NewMemoryPersistence([]byte(input)), nil)

			vocab := s.Load(context.Background())

			assert.NotNil(t, vocab)
			assert.Empty(t, vocab)
		})
	}
}

func TestStore_AddPersistsWholeVocabulary(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersistence(nil)
	s := NewStore(p, nil)
	s.Load(ctx)

	for _, rec := range sampleVocabulary(t) {
		require.NoError(t, s.Add(ctx, rec))
	}

	assert.Equal(t, 3, p.Saves())
	assert.Equal(t, []string{"hello", "yes", "hello"}, s.Snapshot().Names())

	persisted, err := Unmarshal(p.Data())
	require.NoError(t, err)
	assert.Equal(t, s.Snapshot(), persisted)
}

func TestStore_AddTrimsAndRejectsBlankNames(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersistence(nil)
	s := NewStore(p, nil)

	require.NoError(t, s.Add(ctx, Record{Name: "  wave  "}))
	assert.Equal(t, "wave", s.Snapshot()[0].Name)

	err := s.Add(ctx, Record{Name: " \t "})
	assert.ErrorIs(t, err, ErrEmptyName)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, p.Saves())
}

func TestStore_RemoveShiftsIndices(t *testing.T) {
	ctx := context.Background()
	names := []string{"a", "b", "c", "d", "e"}

	for i := range names {
		t.Run(names[i], func(t *testing.T) {
			s := NewStore(NewMemoryPersistence(nil), nil)
			for _, n := range names {
				require.NoError(t, s.Add(ctx, Record{Name: n}))
			}
			before := s.Snapshot()

			removed, err := s.Remove(ctx, i)
			require.NoError(t, err)
			assert.Equal(t, names[i], removed.Name)

			after := s.Snapshot()
			require.Len(t, after, len(before)-1)
			for j := 0; j < i; j++ {
				assert.Equal(t, before[j].Name, after[j].Name)
			}
			for j := i + 1; j < len(before); j++ {
				assert.Equal(t, before[j].Name, after[j-1].Name)
			}
		})
	}
}

func TestStore_RemoveOutOfRange(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersistence(nil)
	s := NewStore(p, nil)
	for _, n := range []string{"a", "b", "c"} {
		require.NoError(t, s.Add(ctx, Record{Name: n}))
	}
	saves := p.Saves()

	for _, idx := range []int{5, 3, -1} {
		_, err := s.Remove(ctx, idx)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	}

	assert.Equal(t, []string{"a", "b", "c"}, s.Snapshot().Names())
	assert.Equal(t, saves, p.Saves())
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersistence(nil)
	s := NewStore(p, nil)
	require.NoError(t, s.Add(ctx, Record{Name: "a"}))

	require.NoError(t, s.Clear(ctx))

	assert.Empty(t, s.Snapshot())
	assert.JSONEq(t, `[]`, string(p.Data()))

	reloaded := NewStore(p, nil).Load(ctx)
	assert.Empty(t, reloaded)
}

func TestStore_SnapshotIsStableAcrossMutation(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryPersistence(nil), nil)
	require.NoError(t, s.Add(ctx, Record{Name: "a"}))
	require.NoError(t, s.Add(ctx, Record{Name: "b"}))

	snap := s.Snapshot()

	_, err := s.Remove(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, Record{Name: "c"}))

	assert.Equal(t, []string{"a", "b"}, snap.Names())
	assert.Equal(t, []string{"b", "c"}, s.Snapshot().Names())
}

func TestStore_PersistFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersistence(nil)
	s := NewStore(p, nil)
	boom := errors.New("disk full")
	p.FailWith(boom)

	err := s.Add(ctx, Record{Name: "a"})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, s.Snapshot().Names())
}

func TestStore_At(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryPersistence(nil), nil)
	require.NoError(t, s.Add(ctx, Record{Name: "a", Thumbnail: []byte{1}}))

	rec, err := s.At(0)
	require.NoError(t, err)
	assert.Equal(t, "a", rec.Name)

	_, err = s.At(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		vocab Vocabulary
	}{
		{"empty", Vocabulary{}},
		{"single", sampleVocabulary(t)[:1]},
		{"duplicates and missing thumbnail", sampleVocabulary(t)},
		{"stale shape", Vocabulary{{Name: "short", Landmarks: detector.Pose{{X: 0.1, Y: 0.2, Z: 0.3}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.vocab)
			require.NoError(t, err)

			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, tt.vocab, got)
		})
	}
}

func TestCodec_BrowserFormat(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "browser_vocabulary.json"))
	require.NoError(t, err)

	vocab, err := Unmarshal(data)
	require.NoError(t, err)

	require.Len(t, vocab, 2)
	assert.Equal(t, "hello", vocab[0].Name)
	assert.Len(t, vocab[0].Landmarks, detector.NumLandmarks)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\nlegacy-thumbnail"), vocab[0].Thumbnail)

	assert.Equal(t, "thanks", vocab[1].Name)
	assert.Nil(t, vocab[1].Thumbnail)
	assert.InDelta(t, 0.3, vocab[1].Landmarks[0].X, 1e-12)
}

func TestCodec_ImageIsDataURL(t *testing.T) {
	data, err := Marshal(Vocabulary{{Name: "a", Landmarks: detector.Pose{}, Thumbnail: []byte("abc")}})
	require.NoError(t, err)

	assert.JSONEq(t, `[{"name":"a","landmarks":[],"image":"data:image/png;base64,YWJj"}]`, string(data))
}

func TestFilePersistence(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", "signs.json")
			p := NewFilePersistence(path, compress)

			_, err := p.LoadVocabulary(ctx)
			assert.ErrorIs(t, err, ErrNoVocabulary)

			s := NewStore(p, nil)
			s.Load(ctx)
			for _, rec := range sampleVocabulary(t) {
				require.NoError(t, s.Add(ctx, rec))
			}

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, compress, len(raw) >= 4 && string(raw[:4]) == string(zstdMagic))

			reloaded := NewStore(NewFilePersistence(path, !compress), nil).Load(ctx)
			assert.Equal(t, s.Snapshot(), reloaded)
		})
	}
}

func TestFilePersistence_CorruptFileLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "signs.json")
	require.NoError(t, os.WriteFile(path, []byte("not a vocabulary"), 0644))

	vocab := NewStore(NewFilePersistence(path, false), nil).Load(ctx)

	assert.Empty(t, vocab)
}

func TestFilePersistence_CorruptCompressedFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "signs.json.zst")
	require.NoError(t, os.WriteFile(path, append(append([]byte{}, zstdMagic...), 0xff, 0xff, 0x00), 0644))

	_, err := NewFilePersistence(path, true).LoadVocabulary(ctx)
	assert.ErrorIs(t, err, ErrPersistenceCorrupt)
}

package signs

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ayusman/mudra/internal/detector"
)

const pngDataURLPrefix = "data:image/png;base64,"

// wireRecord is the persisted shape of a Record. The image is stored as a
// data URL so vocabularies written by the browser trainer load unchanged.
type wireRecord struct {
	Name      string          `json:"name"`
	Landmarks json.RawMessage `json:"landmarks"`
	Image     string          `json:"image,omitempty"`
}

// Marshal encodes a vocabulary as a JSON array of
// {"name", "landmarks": [{"x","y","z"}...], "image"} objects.
func Marshal(v Vocabulary) ([]byte, error) {
	out := make([]wireRecord, 0, len(v))
	for _, r := range v {
		landmarks := r.Landmarks
		if landmarks == nil {
			landmarks = detector.Pose{}
		}
		raw, err := json.Marshal(landmarks)
		if err != nil {
			return nil, fmt.Errorf("encode landmarks for %q: %w", r.Name, err)
		}

		wr := wireRecord{Name: r.Name, Landmarks: raw}
		if len(r.Thumbnail) > 0 {
			wr.Image = pngDataURLPrefix + base64.StdEncoding.EncodeToString(r.Thumbnail)
		}
		out = append(out, wr)
	}
	return json.Marshal(out)
}

// Unmarshal decodes data written by Marshal. Any malformed record makes the
// whole payload invalid; the error wraps ErrPersistenceCorrupt.
func Unmarshal(data []byte) (Vocabulary, error) {
	var wire []wireRecord
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceCorrupt, err)
	}

	v := make(Vocabulary, 0, len(wire))
	for i, wr := range wire {
		name := strings.TrimSpace(wr.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: record %d has no name", ErrPersistenceCorrupt, i)
		}

		landmarks, err := decodeLandmarks(wr.Landmarks)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d (%s): %w", ErrPersistenceCorrupt, i, name, err)
		}

		thumb, err := decodeDataURL(wr.Image)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d (%s): %w", ErrPersistenceCorrupt, i, name, err)
		}

		v = append(v, Record{Name: name, Landmarks: landmarks, Thumbnail: thumb})
	}
	return v, nil
}

// decodeLandmarks accepts a flat point list or, as the browser trainer
// stored it, a list of hands of which the first is used.
func decodeLandmarks(raw json.RawMessage) (detector.Pose, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("missing landmarks")
	}

	var pose detector.Pose
	if err := json.Unmarshal(raw, &pose); err == nil {
		return pose, nil
	}

	var hands []detector.Pose
	if err := json.Unmarshal(raw, &hands); err != nil {
		return nil, fmt.Errorf("decode landmarks: %w", err)
	}
	if len(hands) == 0 {
		return nil, fmt.Errorf("no hands in landmarks")
	}
	return hands[0], nil
}

func decodeDataURL(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "data:") {
		return nil, fmt.Errorf("image is not a data URL")
	}
	meta, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("image data URL is not base64")
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return b, nil
}

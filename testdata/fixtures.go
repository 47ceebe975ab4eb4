// Package testdata provides recorded hand poses for tests.
//
// Every full pose is at least 0.07 mean wrist-relative distance from every
// other, so each classifies only as itself at the default threshold.
package testdata

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/ayusman/mudra/internal/detector"
)

//go:embed poses/*.json
var posesFS embed.FS

// Pose fixture names.
const (
	OpenPalm = "open_palm"
	Fist     = "fist"
	Sideways = "sideways"
	// Partial has only 5 landmarks and never normalizes.
	Partial = "partial"
)

// LoadPose loads a pose fixture by name, in raw image coordinates.
func LoadPose(name string) (detector.Pose, error) {
	data, err := posesFS.ReadFile("poses/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("load pose %s: %w", name, err)
	}

	var pose detector.Pose
	if err := json.Unmarshal(data, &pose); err != nil {
		return nil, fmt.Errorf("decode pose %s: %w", name, err)
	}
	return pose, nil
}

// MustPose is LoadPose for test setup; it panics on error.
func MustPose(name string) detector.Pose {
	pose, err := LoadPose(name)
	if err != nil {
		panic(err)
	}
	return pose
}

// Hand wraps a pose fixture as a single detected right hand.
func Hand(name string) detector.HandLandmarks {
	return detector.HandLandmarks{Points: MustPose(name), Handedness: "Right", Score: 0.95}
}

// Names lists the available pose fixtures.
func Names() []string {
	entries, err := posesFS.ReadDir("poses")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	return names
}

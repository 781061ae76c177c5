package chords

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"musichelper/model"
)

// ArtifactName is the timeline artifact filename inside an upload's
// processed directory.
const ArtifactName = "chords.json"

// ArtifactPath returns the timeline artifact path for a processed directory.
func ArtifactPath(processedDir string) string {
	return filepath.Join(processedDir, ArtifactName)
}

// Load reads the chord timeline artifact from an upload's processed
// directory. A missing artifact is an expected state (uploads processed
// before chord extraction existed, or analyses that yielded nothing) and
// returns (nil, nil) rather than an error.
func Load(processedDir string) (*model.ChordTimeline, error) {
	return loadFile(ArtifactPath(processedDir))
}

func loadFile(path string) (*model.ChordTimeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to read timeline artifact: %v", model.ErrStorage, err)
	}

	var timeline model.ChordTimeline
	if err := json.Unmarshal(data, &timeline); err != nil {
		return nil, fmt.Errorf("%w: malformed timeline artifact %s: %v", model.ErrStorage, path, err)
	}
	return &timeline, nil
}

// WriteAtomic replaces the timeline artifact using write-then-rename so a
// concurrent reader never observes a partially written file.
func WriteAtomic(processedDir string, timeline *model.ChordTimeline) error {
	data, err := json.MarshalIndent(timeline, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %w", err)
	}

	tmp, err := os.CreateTemp(processedDir, ArtifactName+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp artifact: %v", model.ErrStorage, err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: failed to write temp artifact: %v", model.ErrStorage, err)
	}

	if err := os.Rename(tmpName, ArtifactPath(processedDir)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: failed to replace timeline artifact: %v", model.ErrStorage, err)
	}
	return nil
}

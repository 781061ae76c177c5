package chords

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"musichelper/model"
)

func TestLoadMissingArtifact(t *testing.T) {
	timeline, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("missing artifact should not be an error, got %v", err)
	}
	if timeline != nil {
		t.Fatalf("missing artifact should yield nil timeline, got %+v", timeline)
	}
}

func TestLoadMalformedArtifact(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(ArtifactPath(dir), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if !errors.Is(err, model.ErrStorage) {
		t.Fatalf("malformed artifact should wrap ErrStorage, got %v", err)
	}
}

func TestWriteAtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := &model.ChordTimeline{
		Duration:    42.5,
		PrimaryStem: "vocals",
		Events: []model.ChordEvent{
			{Time: 0, Chord: "Em", Confidence: 0.95},
			{Time: 4.2, Chord: "D", Confidence: 0.81},
		},
	}

	if err := WriteAtomic(dir, want); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("Load returned nil after write")
	}
	if got.Duration != want.Duration || got.PrimaryStem != want.PrimaryStem {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(got.Events) != len(want.Events) {
		t.Fatalf("got %d events, want %d", len(got.Events), len(want.Events))
	}
	for i := range want.Events {
		if got.Events[i] != want.Events[i] {
			t.Errorf("event %d: got %+v, want %+v", i, got.Events[i], want.Events[i])
		}
	}
}

func TestWriteAtomicReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	old := &model.ChordTimeline{Duration: 10, Events: []model.ChordEvent{{Time: 0, Chord: "C"}}}
	if err := WriteAtomic(dir, old); err != nil {
		t.Fatal(err)
	}

	replacement := &model.ChordTimeline{Duration: 20, Events: []model.ChordEvent{{Time: 0, Chord: "F"}}}
	if err := WriteAtomic(dir, replacement); err != nil {
		t.Fatal(err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got.Duration != 20 || got.Events[0].Chord != "F" {
		t.Errorf("artifact not replaced, got %+v", got)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != ArtifactName {
			t.Errorf("unexpected leftover file %s", filepath.Join(dir, e.Name()))
		}
	}
}

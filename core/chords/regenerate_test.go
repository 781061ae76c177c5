package chords

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"musichelper/model"
)

// memUploadRepo is an in-memory UploadRepository for coordinator tests.
type memUploadRepo struct {
	mu      sync.Mutex
	uploads map[int64]*model.Upload
}

func newMemUploadRepo(uploads ...*model.Upload) *memUploadRepo {
	r := &memUploadRepo{uploads: make(map[int64]*model.Upload)}
	for _, u := range uploads {
		copied := *u
		r.uploads[u.ID] = &copied
	}
	return r
}

func (r *memUploadRepo) CreateUpload(upload *model.Upload) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := int64(len(r.uploads) + 1)
	upload.ID = id
	copied := *upload
	r.uploads[id] = &copied
	return id, nil
}

func (r *memUploadRepo) GetUploadByID(id int64) (*model.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.uploads[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (r *memUploadRepo) GetAllUploadsByUserID(userID int64) ([]*model.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Upload
	for _, u := range r.uploads {
		if u.UserID == userID {
			copied := *u
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memUploadRepo) GetAllUploads() ([]*model.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Upload
	for _, u := range r.uploads {
		copied := *u
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memUploadRepo) UpdateMetadata(id int64, songName, artist string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.uploads[id]; ok {
		u.SongName = songName
		u.Artist = artist
	}
	return nil
}

func (r *memUploadRepo) TransitionStatus(id int64, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.uploads[id]
	if !ok || u.ProcessingStatus != from {
		return false, nil
	}
	u.ProcessingStatus = to
	return true, nil
}

func (r *memUploadRepo) CompleteProcessing(id int64, processedPath string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.uploads[id]
	if !ok || u.ProcessingStatus != model.StatusProcessing {
		return false, nil
	}
	u.ProcessingStatus = model.StatusCompleted
	u.ProcessedPath = processedPath
	return true, nil
}

func (r *memUploadRepo) DeleteUpload(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.uploads, id)
	return nil
}

// writerTool emulates the extraction script by writing a timeline artifact.
type writerTool struct {
	timeline *model.ChordTimeline
	err      error
}

func (t *writerTool) Separate(ctx context.Context, inputPath string, uploadID int64) error {
	return nil
}

func (t *writerTool) ExtractChords(ctx context.Context, processedDir, stem, outputName string) error {
	if t.err != nil {
		return t.err
	}
	data, err := json.Marshal(t.timeline)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(processedDir, outputName), data, 0644)
}

func completedUpload(id, ownerID int64) *model.Upload {
	return &model.Upload{
		ID:               id,
		UserID:           ownerID,
		ProcessingStatus: model.StatusCompleted,
		ProcessedPath:    fmt.Sprintf("/processed/upload_%d", id),
	}
}

func TestRegenerateWritesTimeline(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "upload_7"), 0755); err != nil {
		t.Fatal(err)
	}

	repo := newMemUploadRepo(completedUpload(7, 3))
	tool := &writerTool{timeline: &model.ChordTimeline{
		Duration: 12,
		Events:   []model.ChordEvent{{Time: 0, Chord: "C", Confidence: 0.9}},
	}}
	c := NewCoordinator(repo, tool, root)

	owner := model.Principal{UserID: 3}
	timeline, err := c.Regenerate(context.Background(), owner, 7, "drums")
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if timeline.PrimaryStem != "drums" {
		t.Errorf("PrimaryStem = %q, want drums", timeline.PrimaryStem)
	}

	stored, err := Load(filepath.Join(root, "upload_7"))
	if err != nil {
		t.Fatal(err)
	}
	if stored == nil || stored.PrimaryStem != "drums" || len(stored.Events) != 1 {
		t.Errorf("artifact on disk = %+v", stored)
	}
}

func TestRegenerateRejections(t *testing.T) {
	root := t.TempDir()
	repo := newMemUploadRepo(
		completedUpload(1, 3),
		&model.Upload{ID: 2, UserID: 3, ProcessingStatus: model.StatusProcessing},
	)
	c := NewCoordinator(repo, &writerTool{}, root)

	owner := model.Principal{UserID: 3}
	stranger := model.Principal{UserID: 9}

	tests := []struct {
		name      string
		principal model.Principal
		uploadID  int64
		stem      string
		wantErr   error
	}{
		{"invalid stem", owner, 1, "guitar", model.ErrValidation},
		{"empty stem", owner, 1, "", model.ErrValidation},
		{"unknown upload", owner, 99, "vocals", model.ErrNotFound},
		{"not the owner", stranger, 1, "vocals", model.ErrPermission},
		{"still processing", owner, 2, "vocals", model.ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Regenerate(context.Background(), tt.principal, tt.uploadID, tt.stem)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegenerateAdminBypassesOwnership(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "upload_1"), 0755); err != nil {
		t.Fatal(err)
	}
	repo := newMemUploadRepo(completedUpload(1, 3))
	tool := &writerTool{timeline: &model.ChordTimeline{Duration: 5, Events: []model.ChordEvent{{Chord: "G"}}}}
	c := NewCoordinator(repo, tool, root)

	admin := model.Principal{UserID: 42, Admin: true}
	if _, err := c.Regenerate(context.Background(), admin, 1, "bass"); err != nil {
		t.Fatalf("admin regeneration should succeed, got %v", err)
	}
}

func TestRegenerateToolFailureKeepsOldArtifact(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "upload_5")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	previous := &model.ChordTimeline{Duration: 8, PrimaryStem: "all", Events: []model.ChordEvent{{Chord: "Dm"}}}
	if err := WriteAtomic(dir, previous); err != nil {
		t.Fatal(err)
	}

	repo := newMemUploadRepo(completedUpload(5, 3))
	c := NewCoordinator(repo, &writerTool{err: fmt.Errorf("%w: demucs crashed", model.ErrToolFailure)}, root)

	_, err := c.Regenerate(context.Background(), model.Principal{UserID: 3}, 5, "vocals")
	if !errors.Is(err, model.ErrToolFailure) {
		t.Fatalf("got %v, want ErrToolFailure", err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.PrimaryStem != "all" {
		t.Errorf("previous artifact should be untouched, got %+v", got)
	}
}

func TestRegenerateUnreadableToolOutput(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "upload_6")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	repo := newMemUploadRepo(completedUpload(6, 3))
	// Tool exits zero but never writes the output file.
	c := NewCoordinator(repo, &garbageTool{}, root)

	_, err := c.Regenerate(context.Background(), model.Principal{UserID: 3}, 6, "other")
	if !errors.Is(err, model.ErrToolFailure) {
		t.Fatalf("got %v, want ErrToolFailure", err)
	}
}

type garbageTool struct{}

func (garbageTool) Separate(ctx context.Context, inputPath string, uploadID int64) error {
	return nil
}

func (garbageTool) ExtractChords(ctx context.Context, processedDir, stem, outputName string) error {
	return nil
}

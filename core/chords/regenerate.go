package chords

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"musichelper/cache"
	"musichelper/core/processing"
	"musichelper/logger"
	"musichelper/model"
	"musichelper/repository"

	"github.com/google/uuid"
)

// ValidStems enumerates the stems chord extraction can run against.
var ValidStems = map[string]bool{
	"vocals": true,
	"drums":  true,
	"bass":   true,
	"other":  true,
	"all":    true,
}

// Coordinator re-runs chord extraction against a chosen stem and atomically
// swaps in the new timeline artifact. Regeneration never changes the upload's
// processing status; only the initial pipeline does that.
type Coordinator struct {
	repo          repository.UploadRepository
	tool          processing.ToolRunner
	processedRoot string

	// One mutex per upload id so concurrent regeneration requests for the
	// same upload cannot race on the artifact.
	locks sync.Map
}

// NewCoordinator creates a regeneration coordinator.
func NewCoordinator(repo repository.UploadRepository, tool processing.ToolRunner, processedRoot string) *Coordinator {
	return &Coordinator{
		repo:          repo,
		tool:          tool,
		processedRoot: processedRoot,
	}
}

func (c *Coordinator) lockFor(uploadID int64) *sync.Mutex {
	mu, _ := c.locks.LoadOrStore(uploadID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Regenerate runs chord extraction synchronously against the given stem and
// returns the freshly written timeline. On tool failure the previous artifact
// (if any) stays in place untouched.
func (c *Coordinator) Regenerate(ctx context.Context, principal model.Principal, uploadID int64, stem string) (*model.ChordTimeline, error) {
	if !ValidStems[stem] {
		return nil, fmt.Errorf("%w: invalid stem %q", model.ErrValidation, stem)
	}

	upload, err := c.repo.GetUploadByID(uploadID)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, fmt.Errorf("%w: upload %d", model.ErrNotFound, uploadID)
	}
	if !principal.CanAccess(upload.UserID) {
		return nil, fmt.Errorf("%w: upload %d belongs to another user", model.ErrPermission, uploadID)
	}
	if upload.ProcessingStatus != model.StatusCompleted {
		return nil, fmt.Errorf("%w: upload %d is %s, regeneration requires completed",
			model.ErrInvalidState, uploadID, upload.ProcessingStatus)
	}

	mu := c.lockFor(uploadID)
	mu.Lock()
	defer mu.Unlock()

	processedDir := filepath.Join(c.processedRoot, fmt.Sprintf("upload_%d", uploadID))
	tmpName := ArtifactName + ".tmp-" + uuid.New().String()
	tmpPath := filepath.Join(processedDir, tmpName)

	if err := c.tool.ExtractChords(ctx, processedDir, stem, tmpName); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	// Validate the tool output before it becomes the authoritative artifact.
	timeline, err := loadFile(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: tool produced an unreadable timeline: %v", model.ErrToolFailure, err)
	}
	if timeline == nil {
		return nil, fmt.Errorf("%w: tool exited successfully but produced no timeline", model.ErrToolFailure)
	}
	if timeline.PrimaryStem == "" {
		timeline.PrimaryStem = stem
	}

	if err := WriteAtomic(processedDir, timeline); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	os.Remove(tmpPath)

	if err := cache.InvalidateChordTimeline(ctx, uploadID); err != nil {
		logger.Warn("Failed to invalidate timeline cache after regeneration",
			logger.Int64("uploadId", uploadID),
			logger.ErrorField(err))
	}

	logger.Info("Chord timeline regenerated",
		logger.Int64("uploadId", uploadID),
		logger.String("stem", stem),
		logger.Int("events", len(timeline.Events)))
	return timeline, nil
}

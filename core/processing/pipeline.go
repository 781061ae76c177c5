package processing

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"musichelper/logger"
	"musichelper/model"
	"musichelper/repository"

	"github.com/google/uuid"
)

// allowedMimeTypes is the accepted audio set for uploads.
var allowedMimeTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/ogg":   true,
	"audio/mp4":   true,
}

var nonAlphaNumeric = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)
var multipleSpaces = regexp.MustCompile(`\s+`)

// sanitizeFilename keeps uploaded filenames safe for local storage.
func sanitizeFilename(name string) string {
	base := strings.TrimSpace(name)
	base = multipleSpaces.ReplaceAllString(base, "_")
	base = nonAlphaNumeric.ReplaceAllString(base, "")
	if len(base) > 100 {
		base = base[:100]
	}
	if base == "" {
		base = "upload"
	}
	return base
}

// SubmitRequest carries one upload submission into the pipeline.
type SubmitRequest struct {
	OriginalFilename string
	ContentType      string
	Size             int64
	Content          io.Reader
	Artist           string
	SongName         string
	OwnerID          int64
}

// Pipeline owns the upload processing lifecycle:
// pending -> processing -> completed | error.
type Pipeline struct {
	repo         repository.UploadRepository
	tool         ToolRunner
	uploadDir    string
	processedDir string
}

// NewPipeline creates a processing pipeline.
func NewPipeline(repo repository.UploadRepository, tool ToolRunner, uploadDir, processedDir string) *Pipeline {
	return &Pipeline{
		repo:         repo,
		tool:         tool,
		uploadDir:    uploadDir,
		processedDir: processedDir,
	}
}

// Submit validates the declared media type, persists the raw file and creates
// the upload record with status pending. No processing is started here.
func (p *Pipeline) Submit(req SubmitRequest) (int64, error) {
	if !allowedMimeTypes[req.ContentType] {
		return 0, fmt.Errorf("%w: media type %q is not an accepted audio type", model.ErrValidation, req.ContentType)
	}

	artist := strings.TrimSpace(req.Artist)
	if artist == "" {
		artist = "Unknown"
	}
	songName := strings.TrimSpace(req.SongName)
	if songName == "" {
		songName = strings.TrimSuffix(req.OriginalFilename, filepath.Ext(req.OriginalFilename))
	}

	savedFilename := uuid.New().String() + "-" + sanitizeFilename(req.OriginalFilename)
	filePath := filepath.Join(p.uploadDir, savedFilename)

	out, err := os.Create(filePath)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create upload file: %v", model.ErrStorage, err)
	}
	written, err := io.Copy(out, req.Content)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(filePath)
		return 0, fmt.Errorf("%w: failed to write upload file: %v", model.ErrStorage, err)
	}

	upload := &model.Upload{
		UserID:           req.OwnerID,
		OriginalFilename: req.OriginalFilename,
		SavedFilename:    savedFilename,
		FilePath:         filePath,
		FileSize:         written,
		Artist:           artist,
		SongName:         songName,
		ProcessingStatus: model.StatusPending,
	}
	id, err := p.repo.CreateUpload(upload)
	if err != nil {
		os.Remove(filePath)
		return 0, fmt.Errorf("%w: failed to persist upload record: %v", model.ErrStorage, err)
	}

	return id, nil
}

// BeginProcessing transitions pending -> processing and kicks off the
// separation tool in the background. The call returns immediately; the final
// status is only observable through subsequent reads. Calling this on an
// upload already in processing is an idempotent no-op.
func (p *Pipeline) BeginProcessing(id int64) error {
	upload, err := p.repo.GetUploadByID(id)
	if err != nil {
		return err
	}
	if upload == nil {
		return fmt.Errorf("%w: upload %d", model.ErrNotFound, id)
	}

	moved, err := p.repo.TransitionStatus(id, model.StatusPending, model.StatusProcessing)
	if err != nil {
		return err
	}
	if !moved {
		if upload.ProcessingStatus == model.StatusProcessing {
			logger.Info("Upload already processing, ignoring duplicate request", logger.Int64("uploadId", id))
			return nil
		}
		return fmt.Errorf("%w: upload %d is %s, cannot begin processing", model.ErrInvalidState, id, upload.ProcessingStatus)
	}

	// Fire-and-forget: one tool process per upload, no queue or cap. The
	// triggering request has already been answered, so failures can only be
	// recorded into the upload status.
	go p.runSeparation(upload)
	return nil
}

func (p *Pipeline) runSeparation(upload *model.Upload) {
	err := p.tool.Separate(context.Background(), upload.FilePath, upload.ID)
	if err != nil {
		logger.Error("Separation tool failed",
			logger.Int64("uploadId", upload.ID),
			logger.ErrorField(err))
		p.OnToolCompleted(upload.ID, false, "")
		return
	}
	p.OnToolCompleted(upload.ID, true, p.ResultPath(upload.ID))
}

// OnToolCompleted records the terminal status of a processing attempt.
// Invoking it on an upload not in processing is a no-op, which defends
// against duplicate completion signals. The error transition leaves the raw
// file in place for diagnosis.
func (p *Pipeline) OnToolCompleted(id int64, success bool, resultPath string) {
	var moved bool
	var err error
	if success {
		moved, err = p.repo.CompleteProcessing(id, resultPath)
	} else {
		moved, err = p.repo.TransitionStatus(id, model.StatusProcessing, model.StatusError)
	}
	if err != nil {
		logger.Error("Failed to record tool completion",
			logger.Int64("uploadId", id),
			logger.Bool("success", success),
			logger.ErrorField(err))
		return
	}
	if !moved {
		logger.Warn("Ignoring completion signal for upload not in processing",
			logger.Int64("uploadId", id),
			logger.Bool("success", success))
		return
	}
	logger.Info("Upload processing finished",
		logger.Int64("uploadId", id),
		logger.Bool("success", success),
		logger.String("resultPath", resultPath))
}

// ResultPath is the public path of the processed artifact directory for an
// upload, served by the static processed-file route.
func (p *Pipeline) ResultPath(id int64) string {
	return fmt.Sprintf("/processed/upload_%d", id)
}

// ProcessedDir is the on-disk directory holding the processed artifacts of an
// upload (stems, waveforms, chords.json).
func (p *Pipeline) ProcessedDir(id int64) string {
	return filepath.Join(p.processedDir, fmt.Sprintf("upload_%d", id))
}

package model

import "time"

// Processing status values for an upload. Transitions are owned by the
// processing pipeline: pending -> processing -> completed | error.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Upload represents one user-submitted audio file and its processing metadata.
type Upload struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"userId"`
	OriginalFilename string    `json:"originalFilename"`
	SavedFilename    string    `json:"savedFilename"`
	FilePath         string    `json:"-"` // Path to the raw uploaded file, not exposed in API
	FileSize         int64     `json:"fileSize"`
	Artist           string    `json:"artist"`
	SongName         string    `json:"songName"`
	ProcessingStatus string    `json:"processingStatus"`
	ProcessedPath    string    `json:"processedPath,omitempty"` // Set exactly once, on the completed transition
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// IsTerminal reports whether the upload reached a final processing state.
func (u *Upload) IsTerminal() bool {
	return u.ProcessingStatus == StatusCompleted || u.ProcessingStatus == StatusError
}

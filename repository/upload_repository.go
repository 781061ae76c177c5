package repository

import (
	"database/sql"
	"fmt"
	"time"

	"musichelper/db"
	"musichelper/logger"
	"musichelper/model"
)

// UploadRepository defines the interface for upload record operations.
// Status transitions are guarded single-statement updates so that duplicate
// completion signals and concurrent begin-processing calls stay no-ops.
type UploadRepository interface {
	CreateUpload(upload *model.Upload) (int64, error)
	GetUploadByID(id int64) (*model.Upload, error)
	GetAllUploadsByUserID(userID int64) ([]*model.Upload, error)
	GetAllUploads() ([]*model.Upload, error)
	UpdateMetadata(id int64, songName, artist string) error
	// TransitionStatus moves the record from one status to another and reports
	// whether the row actually changed.
	TransitionStatus(id int64, from, to string) (bool, error)
	// CompleteProcessing moves processing -> completed and sets the processed
	// path in the same statement.
	CompleteProcessing(id int64, processedPath string) (bool, error)
	DeleteUpload(id int64) error
}

const uploadColumns = `id, user_id, original_filename, saved_filename, file_path, file_size,
	artist, song_name, processing_status, processed_path, created_at, updated_at`

// mysqlUploadRepository implements UploadRepository for MySQL.
type mysqlUploadRepository struct {
	DB *sql.DB
}

// NewMySQLUploadRepository creates a new instance of mysqlUploadRepository.
func NewMySQLUploadRepository() UploadRepository {
	return &mysqlUploadRepository{DB: db.DB}
}

// CreateUpload adds a new upload record to the database with status pending.
func (r *mysqlUploadRepository) CreateUpload(upload *model.Upload) (int64, error) {
	query := `INSERT INTO uploads (user_id, original_filename, saved_filename, file_path, file_size,
	           artist, song_name, processing_status, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement for CreateUpload: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	res, err := stmt.Exec(upload.UserID, upload.OriginalFilename, upload.SavedFilename,
		upload.FilePath, upload.FileSize, upload.Artist, upload.SongName, model.StatusPending, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateUpload: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateUpload: %w", err)
	}
	logger.Info("Upload record created",
		logger.Int64("uploadId", id),
		logger.String("filename", upload.OriginalFilename))
	return id, nil
}

func scanUpload(scanner interface{ Scan(...interface{}) error }) (*model.Upload, error) {
	upload := &model.Upload{}
	var processedPath sql.NullString
	err := scanner.Scan(&upload.ID, &upload.UserID, &upload.OriginalFilename, &upload.SavedFilename,
		&upload.FilePath, &upload.FileSize, &upload.Artist, &upload.SongName,
		&upload.ProcessingStatus, &processedPath, &upload.CreatedAt, &upload.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if processedPath.Valid {
		upload.ProcessedPath = processedPath.String
	}
	return upload, nil
}

// GetUploadByID retrieves an upload by its ID. Returns (nil, nil) when absent.
func (r *mysqlUploadRepository) GetUploadByID(id int64) (*model.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE id = ?`
	row := r.DB.QueryRow(query, id)

	upload, err := scanUpload(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Upload not found
		}
		return nil, fmt.Errorf("failed to scan upload by ID %d: %w", id, err)
	}
	return upload, nil
}

// GetAllUploadsByUserID retrieves all uploads belonging to a user, newest first.
func (r *mysqlUploadRepository) GetAllUploadsByUserID(userID int64) ([]*model.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.DB.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads for user ID %d: %w", userID, err)
	}
	defer rows.Close()

	return collectUploads(rows)
}

// GetAllUploads retrieves every upload in the system (admin listing).
func (r *mysqlUploadRepository) GetAllUploads() ([]*model.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads ORDER BY created_at DESC`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query all uploads: %w", err)
	}
	defer rows.Close()

	return collectUploads(rows)
}

func collectUploads(rows *sql.Rows) ([]*model.Upload, error) {
	uploads := make([]*model.Upload, 0)
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload row: %w", err)
		}
		uploads = append(uploads, upload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during uploads iteration: %w", err)
	}
	return uploads, nil
}

// UpdateMetadata updates the mutable display fields of an upload.
func (r *mysqlUploadRepository) UpdateMetadata(id int64, songName, artist string) error {
	query := `UPDATE uploads SET song_name = ?, artist = ?, updated_at = ? WHERE id = ?`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for UpdateMetadata: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(songName, artist, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to execute UpdateMetadata for upload ID %d: %w", id, err)
	}
	return nil
}

// TransitionStatus performs a guarded status transition. The WHERE clause on
// the current status makes the transition atomic; zero affected rows means
// the record was not in the expected state.
func (r *mysqlUploadRepository) TransitionStatus(id int64, from, to string) (bool, error) {
	query := `UPDATE uploads SET processing_status = ?, updated_at = ? WHERE id = ? AND processing_status = ?`
	res, err := r.DB.Exec(query, to, time.Now(), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition upload %d from %s to %s: %w", id, from, to, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows for upload %d: %w", id, err)
	}
	return affected > 0, nil
}

// CompleteProcessing atomically moves processing -> completed and records the
// processed artifact path. processed_path is written exactly once because the
// guard only matches rows still in processing.
func (r *mysqlUploadRepository) CompleteProcessing(id int64, processedPath string) (bool, error) {
	query := `UPDATE uploads SET processing_status = ?, processed_path = ?, updated_at = ?
	           WHERE id = ? AND processing_status = ?`
	res, err := r.DB.Exec(query, model.StatusCompleted, processedPath, time.Now(), id, model.StatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to complete processing for upload %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows for upload %d: %w", id, err)
	}
	return affected > 0, nil
}

// DeleteUpload removes an upload record.
func (r *mysqlUploadRepository) DeleteUpload(id int64) error {
	query := `DELETE FROM uploads WHERE id = ?`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for DeleteUpload: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(id)
	if err != nil {
		return fmt.Errorf("failed to execute DeleteUpload for upload ID %d: %w", id, err)
	}
	return nil
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"musichelper/cache"
	"musichelper/core/processing"
	"musichelper/logger"
	"musichelper/model"
	"musichelper/storage"

	"github.com/gorilla/mux"
)

// UploadHandler handles audio file uploads and metadata.
func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	logger.Info("开始处理上传请求",
		logger.String("remoteAddr", r.RemoteAddr),
		logger.String("userAgent", r.UserAgent()))

	principal, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSizeBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		logger.Warn("上传表单解析失败", logger.ErrorField(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart form or file too large"})
		return
	}

	file, header, err := r.FormFile("audioFile")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "audioFile field is required"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	id, err := h.pipeline.Submit(processing.SubmitRequest{
		OriginalFilename: header.Filename,
		ContentType:      contentType,
		Size:             header.Size,
		Content:          file,
		Artist:           r.FormValue("artist"),
		SongName:         r.FormValue("song_name"),
		OwnerID:          principal.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.pipeline.BeginProcessing(id); err != nil {
		// The record exists; processing can be retried, so report the upload
		// as accepted but log the failed kickoff.
		logger.Error("处理启动失败", logger.Int64("uploadId", id), logger.ErrorField(err))
	}

	// 把原始文件镜像一份到 MinIO，失败只记录日志，不影响上传结果
	go h.mirrorUpload(id)

	upload, err := h.uploadRepo.GetUploadByID(id)
	if err != nil || upload == nil {
		writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id})
		return
	}
	writeJSON(w, http.StatusCreated, upload)
}

func (h *APIHandler) mirrorUpload(id int64) {
	upload, err := h.uploadRepo.GetUploadByID(id)
	if err != nil || upload == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := storage.MirrorRawUpload(ctx, upload.FilePath, upload.SavedFilename, "audio/mpeg"); err != nil {
		logger.Warn("原始文件镜像到 MinIO 失败",
			logger.Int64("uploadId", id),
			logger.ErrorField(err))
		return
	}
	logger.Info("原始文件已备份到 MinIO", logger.Int64("uploadId", id))
}

// MyUploadsHandler lists the caller's uploads; admins see every upload.
func (h *APIHandler) MyUploadsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var uploads []*model.Upload
	var err error
	if principal.Admin {
		uploads, err = h.uploadRepo.GetAllUploads()
	} else {
		uploads, err = h.uploadRepo.GetAllUploadsByUserID(principal.UserID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploads)
}

func (h *APIHandler) uploadFromRequest(r *http.Request) (*model.Upload, model.Principal, error) {
	principal, ok := GetPrincipalFromContext(r.Context())
	if !ok {
		return nil, model.Principal{}, model.ErrPermission
	}

	idStr := mux.Vars(r)["upload_id"]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, principal, model.ErrValidation
	}

	upload, err := h.uploadRepo.GetUploadByID(id)
	if err != nil {
		return nil, principal, err
	}
	if upload == nil {
		return nil, principal, model.ErrNotFound
	}
	return upload, principal, nil
}

// UpdateUploadHandler updates the mutable display metadata of an upload.
func (h *APIHandler) UpdateUploadHandler(w http.ResponseWriter, r *http.Request) {
	upload, principal, err := h.uploadFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !principal.CanAccess(upload.UserID) {
		writeError(w, model.ErrPermission)
		return
	}

	var req struct {
		SongName string `json:"song_name"`
		Artist   string `json:"artist"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.SongName == "" {
		req.SongName = upload.SongName
	}
	if req.Artist == "" {
		req.Artist = upload.Artist
	}

	if err := h.uploadRepo.UpdateMetadata(upload.ID, req.SongName, req.Artist); err != nil {
		writeError(w, err)
		return
	}

	logger.Info("Upload metadata updated", logger.Int64("uploadId", upload.ID))
	upload.SongName = req.SongName
	upload.Artist = req.Artist
	writeJSON(w, http.StatusOK, upload)
}

// DeleteUploadHandler deletes an upload record together with its raw file,
// processed artifacts and the MinIO mirror.
func (h *APIHandler) DeleteUploadHandler(w http.ResponseWriter, r *http.Request) {
	upload, principal, err := h.uploadFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !principal.CanAccess(upload.UserID) {
		writeError(w, model.ErrPermission)
		return
	}

	// File cleanup is best-effort: a half-deleted file set is preferable to a
	// dangling database row.
	if err := os.Remove(upload.FilePath); err != nil && !os.IsNotExist(err) {
		logger.Warn("删除原始文件失败", logger.Int64("uploadId", upload.ID), logger.ErrorField(err))
	}
	if err := os.RemoveAll(h.pipeline.ProcessedDir(upload.ID)); err != nil {
		logger.Warn("删除处理结果目录失败", logger.Int64("uploadId", upload.ID), logger.ErrorField(err))
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := storage.RemoveRawUpload(ctx, upload.SavedFilename); err != nil {
		logger.Warn("删除 MinIO 备份失败", logger.Int64("uploadId", upload.ID), logger.ErrorField(err))
	}
	if err := cache.InvalidateChordTimeline(ctx, upload.ID); err != nil {
		logger.Warn("删除时间轴缓存失败", logger.Int64("uploadId", upload.ID), logger.ErrorField(err))
	}

	if err := h.uploadRepo.DeleteUpload(upload.ID); err != nil {
		writeError(w, err)
		return
	}

	logger.Info("Upload deleted", logger.Int64("uploadId", upload.ID))
	w.WriteHeader(http.StatusNoContent)
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"musichelper/config"
	"musichelper/core/chords"
	"musichelper/core/processing"
	"musichelper/logger"
	"musichelper/model"
	"musichelper/repository"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	uploadRepo  repository.UploadRepository
	userRepo    repository.UserRepository
	pipeline    *processing.Pipeline
	coordinator *chords.Coordinator
	cfg         *config.Config
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	uploadRepo repository.UploadRepository,
	userRepo repository.UserRepository,
	pipeline *processing.Pipeline,
	coordinator *chords.Coordinator,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		uploadRepo:  uploadRepo,
		userRepo:    userRepo,
		pipeline:    pipeline,
		coordinator: coordinator,
		cfg:         cfg,
	}
}

// errorResponse is the JSON error body shared by all endpoints.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", logger.ErrorField(err))
	}
}

// writeError maps the core error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrInvalidState):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrPermission):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrToolFailure):
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "analysis tool failed",
			Details: err.Error(),
		})
	default:
		logger.Error("Internal error", logger.ErrorField(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

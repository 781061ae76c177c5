package server

import (
	"encoding/json"
	"net/http"

	"musichelper/cache"
	"musichelper/core/chords"
	"musichelper/logger"
	"musichelper/model"
)

// chordsUnavailable is the stable shape clients receive when no timeline
// exists yet. It is served with 200 so the player UI can render an empty
// timeline instead of breaking on an error status.
type chordsUnavailable struct {
	Duration float64            `json:"duration"`
	Events   []model.ChordEvent `json:"events"`
	Error    string             `json:"error"`
}

// GetChordsHandler serves the chord timeline for an upload, Redis cache
// first, then the artifact on disk.
func (h *APIHandler) GetChordsHandler(w http.ResponseWriter, r *http.Request) {
	upload, principal, err := h.uploadFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !principal.CanAccess(upload.UserID) {
		writeError(w, model.ErrPermission)
		return
	}

	if upload.ProcessingStatus != model.StatusCompleted {
		writeJSON(w, http.StatusOK, chordsUnavailable{
			Events: []model.ChordEvent{},
			Error:  "processing not completed",
		})
		return
	}

	// 先查缓存，未命中再读磁盘
	timeline, err := cache.GetChordTimeline(r.Context(), upload.ID)
	if err != nil {
		logger.Warn("读取时间轴缓存失败", logger.Int64("uploadId", upload.ID), logger.ErrorField(err))
	}
	if timeline == nil {
		timeline, err = chords.Load(h.pipeline.ProcessedDir(upload.ID))
		if err != nil {
			writeError(w, err)
			return
		}
		if timeline == nil {
			writeJSON(w, http.StatusOK, chordsUnavailable{
				Events: []model.ChordEvent{},
				Error:  "chord data not available",
			})
			return
		}
		if err := cache.SetChordTimeline(r.Context(), upload.ID, timeline); err != nil {
			logger.Warn("写入时间轴缓存失败", logger.Int64("uploadId", upload.ID), logger.ErrorField(err))
		}
	}

	writeJSON(w, http.StatusOK, timeline)
}

// RegenerateHandler re-runs chord extraction against a chosen stem.
func (h *APIHandler) RegenerateHandler(w http.ResponseWriter, r *http.Request) {
	upload, principal, err := h.uploadFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Stem string `json:"stem"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	timeline, err := h.coordinator.Regenerate(r.Context(), principal, upload.ID, req.Stem)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := cache.SetChordTimeline(r.Context(), upload.ID, timeline); err != nil {
		logger.Warn("写入时间轴缓存失败", logger.Int64("uploadId", upload.ID), logger.ErrorField(err))
	}

	writeJSON(w, http.StatusOK, timeline)
}

package httpapi

import (
	"errors"
	"net/http"

	"wisefido-survival/internal/monitor"
	"wisefido-survival/internal/service"

	"go.uber.org/zap"
)

const MessageClearFailed = "알림 해제에 실패했습니다"

// SurvivalHandler family safety status endpoints
type SurvivalHandler struct {
	survival service.SurvivalService
	logger   *zap.Logger
}

func NewSurvivalHandler(survival service.SurvivalService, logger *zap.Logger) *SurvivalHandler {
	return &SurvivalHandler{survival: survival, logger: logger}
}

func (h *SurvivalHandler) ListFamilies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(map[string]any{"families": h.survival.Families()}))
}

// GetStatus error state only ever surfaces the generic load-failed message
func (h *SurvivalHandler) GetStatus(w http.ResponseWriter, r *http.Request, familyID string) {
	view, err := h.survival.Status(familyID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if view.State == monitor.StateError {
		writeJSON(w, http.StatusOK, Result[monitor.View]{
			Code:    ResultError,
			Type:    "error",
			Message: monitor.MessageLoadFailed,
			Result:  view,
		})
		return
	}
	writeJSON(w, http.StatusOK, Ok(view))
}

func (h *SurvivalHandler) ClearAlert(w http.ResponseWriter, r *http.Request, familyID string) {
	if err := h.survival.ClearAlert(r.Context(), familyID); err != nil {
		if errors.Is(err, service.ErrUnknownFamily) {
			h.writeServiceError(w, err)
			return
		}
		h.logger.Error("Clear alert failed",
			zap.String("family_id", familyID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(MessageClearFailed))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"family_id": familyID, "cleared": true}))
}

func (h *SurvivalHandler) Retry(w http.ResponseWriter, r *http.Request, familyID string) {
	if err := h.survival.Retry(familyID); err != nil {
		if errors.Is(err, monitor.ErrNotInErrorState) {
			writeJSON(w, http.StatusConflict, Fail("monitor is not in error state"))
			return
		}
		h.writeServiceError(w, err)
		return
	}
	view, _ := h.survival.Status(familyID)
	writeJSON(w, http.StatusOK, Ok(view))
}

func (h *SurvivalHandler) ListAlerts(w http.ResponseWriter, r *http.Request, familyID string) {
	limit := parseInt(r.URL.Query().Get("limit"), 20)
	if limit > 100 {
		limit = 100
	}
	events, err := h.survival.RecentAlerts(r.Context(), familyID, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"items": events, "total": len(events)}))
}

func (h *SurvivalHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.survival.Health(r.Context()); err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, Fail("unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"status": "ok"}))
}

func (h *SurvivalHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownFamily):
		writeJSON(w, http.StatusNotFound, Fail("family not found"))
	case errors.Is(err, service.ErrEventLogDisabled):
		writeJSON(w, http.StatusServiceUnavailable, Fail("alert history is not available"))
	default:
		h.logger.Error("Request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
	}
}

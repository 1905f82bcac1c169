package handlers

import (
	"errors"
	"net/http"

	"reelclip/internal/status"
	"reelclip/web/components"

	"github.com/labstack/echo/v4"
)

// StatusHandler はアップロード状態のハンドラー
type StatusHandler struct {
	tracker *status.Tracker
}

// NewStatusHandler は新しいStatusHandlerを作成
func NewStatusHandler(tracker *status.Tracker) *StatusHandler {
	return &StatusHandler{tracker: tracker}
}

// Get はアップロードの状態を取得（ポーリング用、副作用なし）
func (h *StatusHandler) Get(c echo.Context) error {
	s, err := h.tracker.GetStatus(c.Request().Context(), c.Param("upload_id"))
	if errors.Is(err, status.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "upload not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, s)
}

// Page はアップロード状態ページを表示
func (h *StatusHandler) Page(c echo.Context) error {
	s, err := h.tracker.GetStatus(c.Request().Context(), c.Param("upload_id"))
	if errors.Is(err, status.ErrNotFound) {
		return c.String(http.StatusNotFound, "upload not found")
	}
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	view := components.UploadView{
		UploadID:      s.UploadID,
		ProjectID:     s.ProjectID,
		Title:         s.Title,
		Status:        s.Status,
		Progress:      s.Progress,
		Attempts:      s.Attempts,
		MaxAttempts:   s.MaxAttempts,
		FailureReason: s.FailureReason,
		Clips:         s.Clips,
		Terminal:      s.IsTerminal(),
	}
	if s.Transcript != nil {
		view.TranscriptURL = s.Transcript.TextURL
	}
	return render(c, http.StatusOK, components.UploadStatus(view))
}

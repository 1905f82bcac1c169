package handlers

import (
	"errors"
	"net/http"

	"reelclip/internal/intake"

	"github.com/labstack/echo/v4"
)

// SubmissionHandler は投稿とキャンセルのハンドラー
type SubmissionHandler struct {
	gateway *intake.Gateway
}

// NewSubmissionHandler は新しいSubmissionHandlerを作成
func NewSubmissionHandler(gateway *intake.Gateway) *SubmissionHandler {
	return &SubmissionHandler{gateway: gateway}
}

type submitRequest struct {
	OwnerID          string `json:"owner_id" form:"owner_id" validate:"required,max=128"`
	Title            string `json:"title" form:"title" validate:"max=200"`
	SourceDescriptor string `json:"source_descriptor" form:"source_descriptor" validate:"required,max=2048"`
	SourceKind       string `json:"source_kind" form:"source_kind" validate:"omitempty,oneof=file remote_url"`
}

// Submit は動画を受け付けてジョブを登録（202）
func (h *SubmissionHandler) Submit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	receipt, err := h.gateway.Submit(c.Request().Context(), intake.SubmitRequest{
		OwnerID: req.OwnerID,
		Title:   req.Title,
		Source:  req.SourceDescriptor,
		Kind:    req.SourceKind,
	})
	switch {
	case errors.Is(err, intake.ErrInsufficientCredits):
		return errorJSON(c, http.StatusPaymentRequired, "insufficient credits")
	case errors.Is(err, intake.ErrInvalidSource), errors.Is(err, intake.ErrInvalidRequest):
		return errorJSON(c, http.StatusBadRequest, err.Error())
	case err != nil:
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	if isForm(c) {
		return c.Redirect(http.StatusSeeOther, "/uploads/"+receipt.UploadID)
	}
	return c.JSON(http.StatusAccepted, receipt)
}

// Cancel はキュー待ちまたは処理中のアップロードをキャンセル
func (h *SubmissionHandler) Cancel(c echo.Context) error {
	uploadID := c.Param("upload_id")

	result, err := h.gateway.Cancel(c.Request().Context(), uploadID)
	switch {
	case errors.Is(err, intake.ErrNotFound):
		return errorJSON(c, http.StatusNotFound, "upload not found")
	case errors.Is(err, intake.ErrAlreadyTerminal):
		return errorJSON(c, http.StatusConflict, "upload already finished")
	case err != nil:
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	if isForm(c) {
		return c.Redirect(http.StatusSeeOther, "/uploads/"+uploadID)
	}
	return c.JSON(http.StatusOK, result)
}

package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"reelclip/internal/ledger"

	"github.com/labstack/echo/v4"
)

const headerAdminToken = "X-Admin-Token"

// CreditHandler はクレジット残高のハンドラー
type CreditHandler struct {
	ledger     *ledger.Ledger
	adminToken string
}

// NewCreditHandler は新しいCreditHandlerを作成（adminTokenが空なら付与は無効）
func NewCreditHandler(l *ledger.Ledger, adminToken string) *CreditHandler {
	return &CreditHandler{ledger: l, adminToken: adminToken}
}

// Balance は残高を取得
func (h *CreditHandler) Balance(c echo.Context) error {
	owner := c.Param("owner_id")
	balance, err := h.ledger.Balance(c.Request().Context(), owner)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"owner_id": owner, "balance": balance})
}

// Entries は台帳エントリ一覧を取得
func (h *CreditHandler) Entries(c echo.Context) error {
	entries, err := h.ledger.Entries(c.Request().Context(), c.Param("owner_id"))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}

// JobEntries はジョブに紐づく台帳エントリ（課金と返金）を取得
func (h *CreditHandler) JobEntries(c echo.Context) error {
	entries, err := h.ledger.JobEntries(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}

type grantRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// Grant は管理者がクレジットを付与
func (h *CreditHandler) Grant(c echo.Context) error {
	if h.adminToken == "" {
		return errorJSON(c, http.StatusForbidden, "credit grants are disabled")
	}
	token := c.Request().Header.Get(headerAdminToken)
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
		return errorJSON(c, http.StatusUnauthorized, "invalid admin token")
	}

	var req grantRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	entry, err := h.ledger.Grant(c.Request().Context(), c.Param("owner_id"), req.Amount)
	if errors.Is(err, ledger.ErrInvalidAmount) {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, entry)
}

package handlers

import (
	"net/http"
	"strings"

	"reelclip/web/components"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// HomeHandler は投稿フォームページのハンドラー
type HomeHandler struct {
	admissionCost int64
}

// NewHomeHandler は新しいHomeHandlerを作成
func NewHomeHandler(admissionCost int64) *HomeHandler {
	return &HomeHandler{admissionCost: admissionCost}
}

// Page は投稿フォームを表示
func (h *HomeHandler) Page(c echo.Context) error {
	return render(c, http.StatusOK, components.Home(h.admissionCost))
}

func render(c echo.Context, status int, component templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)
	return component.Render(c.Request().Context(), c.Response())
}

// isForm はHTMLフォームからの送信かどうかを返す
func isForm(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationForm)
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

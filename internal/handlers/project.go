package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"reelclip/internal/report"
	"reelclip/internal/storage"

	"github.com/labstack/echo/v4"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ProjectHandler はプロジェクトとクリップのハンドラー
type ProjectHandler struct {
	projects *storage.ProjectRepository
	results  *storage.ResultRepository
}

// NewProjectHandler は新しいProjectHandlerを作成
func NewProjectHandler(projects *storage.ProjectRepository, results *storage.ResultRepository) *ProjectHandler {
	return &ProjectHandler{projects: projects, results: results}
}

// ListByOwner はオーナーのプロジェクト一覧を取得
func (h *ProjectHandler) ListByOwner(c echo.Context) error {
	projects, err := h.projects.ListByOwner(c.Request().Context(), c.Param("owner_id"), queryLimit(c, 50))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, projects)
}

// Get はプロジェクトを取得
func (h *ProjectHandler) Get(c echo.Context) error {
	project, err := h.projects.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if project == nil {
		return errorJSON(c, http.StatusNotFound, "project not found")
	}
	return c.JSON(http.StatusOK, project)
}

// Clips はプロジェクトのクリップをランク順で取得
func (h *ProjectHandler) Clips(c echo.Context) error {
	ctx := c.Request().Context()
	project, err := h.projects.GetByID(ctx, c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if project == nil {
		return errorJSON(c, http.StatusNotFound, "project not found")
	}

	clips, err := h.results.ListClips(ctx, project.ID)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, clips)
}

// ExportClips はクリップ一覧をxlsxでダウンロード
func (h *ProjectHandler) ExportClips(c echo.Context) error {
	ctx := c.Request().Context()
	project, err := h.projects.GetByID(ctx, c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if project == nil {
		return errorJSON(c, http.StatusNotFound, "project not found")
	}

	clips, err := h.results.ListClips(ctx, project.ID)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	var buf bytes.Buffer
	if err := report.WriteClips(&buf, *project, clips); err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "clips-"+project.ID+".xlsx"))
	return c.Blob(http.StatusOK, mimeXLSX, buf.Bytes())
}

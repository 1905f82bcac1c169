package handlers

import (
	"net/http"
	"strconv"

	"reelclip/internal/queue"
	"reelclip/internal/storage"
	"reelclip/web/components"

	"github.com/labstack/echo/v4"
)

// JobHandler はジョブAPIのハンドラー
type JobHandler struct {
	repo  *storage.JobRepository
	queue *queue.Queue
}

// NewJobHandler は新しいJobHandlerを作成
func NewJobHandler(repo *storage.JobRepository, q *queue.Queue) *JobHandler {
	return &JobHandler{repo: repo, queue: q}
}

type jobStats struct {
	Counts      map[string]int64 `json:"counts"`
	MaxAttempts int              `json:"max_attempts"`
}

// List はジョブ一覧を取得（state で絞り込み可）
func (h *JobHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	state := c.QueryParam("state")
	limit := queryLimit(c, 50)

	if state != "" {
		jobs, err := h.repo.ListByState(ctx, state, limit)
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, jobs)
	}

	jobs, err := h.repo.ListRecent(ctx, limit)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, jobs)
}

// Get はジョブを取得
func (h *JobHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	job, err := h.queue.Inspect(ctx, id)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if job == nil {
		return errorJSON(c, http.StatusNotFound, "job not found")
	}

	return c.JSON(http.StatusOK, job)
}

// Stats は状態ごとのジョブ件数と試行回数の上限を取得
func (h *JobHandler) Stats(c echo.Context) error {
	counts, err := h.queue.Counts(c.Request().Context())
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, jobStats{Counts: counts, MaxAttempts: h.queue.MaxAttempts()})
}

// ListPage はジョブ一覧ページを表示
func (h *JobHandler) ListPage(c echo.Context) error {
	jobs, err := h.repo.ListRecent(c.Request().Context(), 50)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return render(c, http.StatusOK, components.JobList(jobs))
}

func queryLimit(c echo.Context, fallback int) int {
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			return parsed
		}
	}
	return fallback
}

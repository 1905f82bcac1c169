package handlers

import (
	"net/http"

	"reelclip/internal/intake"
	"reelclip/internal/ledger"
	"reelclip/internal/queue"
	"reelclip/internal/status"
	"reelclip/internal/storage"
	"reelclip/internal/worker"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// Deps はルーター構築に必要な依存関係
type Deps struct {
	DB         *storage.DB
	Gateway    *intake.Gateway
	Tracker    *status.Tracker
	Ledger     *ledger.Ledger
	Queue      *queue.Queue
	Worker     *worker.Worker // 同一プロセスのワーカー（無効時は nil）
	AdminToken string
	Version    string
	Log        logrus.FieldLogger
}

// NewRouter はミドルウェアとルートを登録したEchoインスタンスを作成
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	// ミドルウェアの設定
	e.Use(middleware.RequestID())
	e.Use(RequestLogger(d.Log))
	e.Use(middleware.Recover())

	home := NewHomeHandler(d.Gateway.AdmissionCost())
	submissions := NewSubmissionHandler(d.Gateway)
	statuses := NewStatusHandler(d.Tracker)
	projects := NewProjectHandler(storage.NewProjectRepository(d.DB), storage.NewResultRepository(d.DB))
	credits := NewCreditHandler(d.Ledger, d.AdminToken)
	jobs := NewJobHandler(storage.NewJobRepository(d.DB), d.Queue)

	// ページ
	e.GET("/", home.Page)
	e.GET("/uploads/:upload_id", statuses.Page)
	e.GET("/jobs", jobs.ListPage)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": d.Version,
			"worker":  workerState(d.Worker),
		})
	})

	// API
	api := e.Group("/api")
	api.POST("/submit", submissions.Submit)
	api.POST("/cancel/:upload_id", submissions.Cancel)
	api.GET("/status/:upload_id", statuses.Get)

	api.GET("/projects/:id", projects.Get)
	api.GET("/projects/:id/clips", projects.Clips)
	api.GET("/projects/:id/clips.xlsx", projects.ExportClips)

	api.GET("/owners/:owner_id/balance", credits.Balance)
	api.GET("/owners/:owner_id/ledger", credits.Entries)
	api.POST("/owners/:owner_id/credits", credits.Grant)
	api.GET("/owners/:owner_id/projects", projects.ListByOwner)

	api.GET("/jobs", jobs.List)
	api.GET("/jobs/stats", jobs.Stats)
	api.GET("/jobs/:id", jobs.Get)
	api.GET("/jobs/:id/ledger", credits.JobEntries)

	return e
}

func workerState(w *worker.Worker) string {
	switch {
	case w == nil:
		return "disabled"
	case w.Running():
		return "running"
	default:
		return "stopped"
	}
}

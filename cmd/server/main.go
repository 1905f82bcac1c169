package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reelclip/internal/app"
	"reelclip/internal/config"
	"reelclip/internal/handlers"
	"reelclip/internal/logger"
	"reelclip/internal/version"
	"reelclip/internal/worker"
)

func main() {
	// .envファイルを読み込み（存在しない場合はスキップ）
	cfg := config.Load()
	log := logger.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize")
	}
	defer a.Close()

	// ワーカーは同一プロセスでも別プロセス（cmd/worker）でも動かせる
	var w *worker.Worker
	if cfg.WorkerEnabled {
		w = a.NewWorker()
		w.Start(ctx)
		defer w.Stop()
	}

	e := handlers.NewRouter(handlers.Deps{
		DB:         a.DB,
		Gateway:    a.Gateway,
		Tracker:    a.Tracker,
		Ledger:     a.Ledger,
		Queue:      a.Queue,
		Worker:     w,
		AdminToken: cfg.AdminToken,
		Version:    version.Version,
		Log:        log,
	})

	// サーバー起動
	go func() {
		log.Infof("Starting reelclip v%s on port %s", version.Version, cfg.Port)
		if err := e.Start(fmt.Sprintf(":%s", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown did not complete")
	}
}

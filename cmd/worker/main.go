package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"reelclip/internal/app"
	"reelclip/internal/config"
	"reelclip/internal/healthcheck"
	"reelclip/internal/logger"
	"reelclip/internal/version"
)

// The standalone worker consumes the same queue as the server's in-process
// pool. Run it with WORKER_ENABLED=false on the server to scale separately.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize")
	}
	defer a.Close()

	health := healthcheck.New(log)
	go func() {
		if err := health.ListenAndServe(cfg.HealthAddr); err != nil {
			log.WithError(err).Error("health server stopped")
			stop()
		}
	}()

	w := a.NewWorker()
	w.Start(ctx)
	health.SetServing(true)
	log.WithField("version", version.Version).Info("worker running")

	<-ctx.Done()
	log.Info("draining worker")
	health.SetServing(false)
	w.Stop()
	health.Stop()
}

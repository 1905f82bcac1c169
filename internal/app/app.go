// Package app wires the pipeline components from configuration. Both
// binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"reelclip/internal/analysis"
	"reelclip/internal/clips"
	"reelclip/internal/config"
	"reelclip/internal/intake"
	"reelclip/internal/ledger"
	"reelclip/internal/models"
	"reelclip/internal/objectstore"
	"reelclip/internal/pipeline"
	"reelclip/internal/queue"
	"reelclip/internal/status"
	"reelclip/internal/storage"
	"reelclip/internal/webfetch"
	"reelclip/internal/worker"
	"reelclip/internal/youtube"
)

type App struct {
	Config    config.Config
	Log       *logrus.Logger
	DB        *storage.DB
	Ledger    *ledger.Ledger
	Queue     *queue.Queue
	Gateway   *intake.Gateway
	Tracker   *status.Tracker
	Processor *pipeline.Processor

	redis *redis.Client
	web   *webfetch.Client
}

// New opens the database and builds every component. Optional backends
// (Redis, object storage, the analysis service) are used only when configured.
func New(ctx context.Context, cfg config.Config, log *logrus.Logger) (*App, error) {
	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Log: log, DB: db}

	notifier, err := a.notifier(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	a.Ledger = ledger.New(db)
	a.Queue = queue.New(db, queue.Config{
		MaxAttempts:  cfg.MaxAttempts,
		Lease:        cfg.JobLease,
		PollInterval: cfg.WorkerPoll,
		Backoff: queue.Backoff{
			Base:       cfg.RetryBaseDelay,
			Multiplier: cfg.RetryMultiplier,
			Max:        cfg.RetryMaxDelay,
		},
	}, notifier, log)

	a.Gateway = intake.NewGateway(db, a.Ledger, a.Queue, intake.Config{
		AdmissionCost:    cfg.AdmissionCost,
		AdmissionTimeout: cfg.AdmissionTimeout,
		TitleTimeout:     cfg.TitleTimeout,
	}, log).WithTitleResolver(youtube.NewClient())
	if cfg.WebTitleLookup {
		a.web, err = webfetch.NewClient(&webfetch.Options{Stealth: true, BrowserPath: cfg.BrowserPath})
		if err != nil {
			// titles fall back to the generated default
			log.WithError(err).Warn("failed to start browser for page titles")
		} else {
			a.Gateway.WithTitleResolver(a.web)
		}
	}

	a.Tracker = status.NewTracker(db, a.Queue, status.Config{ExpectedProcessing: cfg.ExpectedProcessing}, log)
	if cfg.MinioEndpoint != "" {
		presigner, err := objectstore.New(objectstore.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			Region:    cfg.MinioRegion,
			Bucket:    cfg.MinioBucket,
			Expiry:    cfg.PresignExpiry,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Tracker.WithPresigner(presigner)
	}

	a.Processor = pipeline.NewProcessor(db, a.Queue, a.Ledger, a.analyzer(), pipeline.Config{
		AnalysisTimeout: cfg.AnalysisTimeout,
		Clips: clips.Options{
			TopK:       cfg.TopKClips,
			MinSeconds: cfg.ClipMinSeconds,
			MaxSeconds: cfg.ClipMaxSeconds,
		},
	}, log)

	return a, nil
}

func (a *App) notifier(ctx context.Context) (queue.Notifier, error) {
	if a.Config.RedisAddr == "" {
		return queue.NewLocalNotifier(), nil
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		a.redis.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.Config.RedisAddr, err)
	}
	a.Log.WithField("addr", a.Config.RedisAddr).Info("using redis wake-up channel")
	return queue.NewRedisNotifier(a.redis, a.Config.RedisWakeKey), nil
}

func (a *App) analyzer() analysis.Collaborator {
	if a.Config.AnalysisURL == "" {
		a.Log.Warn("ANALYSIS_URL is not set; using the deterministic analysis stub")
		return analysis.NewStub()
	}
	return analysis.NewHTTPClient(a.Config.AnalysisURL, a.Config.AnalysisTimeout, a.Log)
}

// NewWorker returns a pool with the analyze handler registered.
func (a *App) NewWorker() *worker.Worker {
	w := worker.NewWorker(a.Queue, a.Config.WorkerConcurrency, a.Log)
	w.RegisterHandler(models.JobTypeAnalyze, a.Processor)
	return w
}

// Close releases the database, the browser and the Redis connection.
func (a *App) Close() error {
	var errs []error
	if a.web != nil {
		errs = append(errs, a.web.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}

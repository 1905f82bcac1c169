package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"reelclip/internal/analysis"
	"reelclip/internal/logger"
	"reelclip/internal/queue"
)

// ErrExhausted is the cause passed to Abandon when a job's lease expired on
// its final attempt.
var ErrExhausted = errors.New("job did not finish within its final attempt")

// Handler processes one job type.
type Handler interface {
	// Handle runs one attempt. It must ack the delivery itself on success.
	Handle(ctx context.Context, d *queue.Delivery) error
	// Abandon dead-letters the delivery and settles everything that depends on it.
	Abandon(ctx context.Context, d *queue.Delivery, cause error) error
}

// Queue is the part of the job queue the pool consumes.
type Queue interface {
	Dequeue(ctx context.Context) (*queue.Delivery, error)
	Retry(ctx context.Context, d *queue.Delivery, cause error) (time.Time, error)
	Release(ctx context.Context, d *queue.Delivery) error
	Fail(ctx context.Context, d *queue.Delivery, cause error) error
}

// Worker runs a fixed number of independent slots, each taking one job at a time.
type Worker struct {
	queue       Queue
	handlers    map[string]Handler
	concurrency int
	log         *logrus.Entry
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.RWMutex
	running     bool
}

// NewWorker creates a new worker
func NewWorker(q Queue, concurrency int, log logrus.FieldLogger) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{
		queue:       q,
		handlers:    make(map[string]Handler),
		concurrency: concurrency,
		log:         logger.Component(log, "worker"),
	}
}

// RegisterHandler registers a handler for a job type
func (w *Worker) RegisterHandler(jobType string, handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Start launches the slots. They run until Stop is called or ctx ends.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.running = true

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
	w.log.WithField("slots", w.concurrency).Info("worker started")
}

// Stop cancels in-flight jobs and waits for every slot to return.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
	w.log.Info("worker stopped")
}

// Running reports whether the slots are started.
func (w *Worker) Running() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Worker) run(ctx context.Context, slot int) {
	defer w.wg.Done()
	log := w.log.WithField("slot", slot)

	for {
		d, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Error("failed to dequeue job")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		w.process(ctx, d)
	}
}

func (w *Worker) process(ctx context.Context, d *queue.Delivery) {
	log := w.log.WithFields(logrus.Fields{
		"job_id":    d.Job.ID,
		"upload_id": d.Job.UploadID,
		"attempt":   d.Attempt,
	})

	w.mu.RLock()
	handler, ok := w.handlers[d.Job.Type]
	w.mu.RUnlock()

	if !ok {
		log.WithField("type", d.Job.Type).Error("no handler registered for job type")
		if err := w.queue.Fail(ctx, d, fmt.Errorf("no handler registered for job type: %s", d.Job.Type)); err != nil {
			log.WithError(err).Error("failed to dead-letter job")
		}
		return
	}

	if d.Exhausted {
		log.Warn("job lease expired on its final attempt")
		w.abandon(ctx, handler, d, ErrExhausted, log)
		return
	}

	log.Info("processing job")
	err := handler.Handle(ctx, d)
	if err == nil {
		log.Info("job completed")
		return
	}

	if ctx.Err() != nil {
		// shutting down: hand the job back without spending the attempt
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := w.queue.Release(releaseCtx, d); rerr != nil {
			log.WithError(rerr).Warn("failed to release job on shutdown; it will be redelivered after its lease")
		}
		return
	}

	if errors.Is(err, queue.ErrLeaseLost) {
		log.Warn("job was taken over by another delivery")
		return
	}

	w.handleJobFailure(ctx, handler, d, err, log)
}

func (w *Worker) handleJobFailure(ctx context.Context, handler Handler, d *queue.Delivery, jobErr error, log *logrus.Entry) {
	log = log.WithError(jobErr)

	if analysis.IsPermanent(jobErr) || d.Attempt >= d.Job.MaxAttempts {
		log.Warn("job failed permanently")
		w.abandon(ctx, handler, d, jobErr, log)
		return
	}

	next, err := w.queue.Retry(ctx, d, jobErr)
	if err != nil {
		log.WithField("retry_error", err.Error()).Error("failed to schedule retry")
		return
	}
	log.WithField("next_run_at", next).Warnf("job queued for retry (attempt %d/%d)", d.Attempt, d.Job.MaxAttempts)
}

func (w *Worker) abandon(ctx context.Context, handler Handler, d *queue.Delivery, cause error, log *logrus.Entry) {
	if err := handler.Abandon(ctx, d, cause); err != nil {
		if errors.Is(err, queue.ErrLeaseLost) {
			log.Warn("job was settled by another delivery")
			return
		}
		// the lease will expire and the job comes back as exhausted
		log.WithField("abandon_error", err.Error()).Error("failed to dead-letter job")
		return
	}
	log.Info("job dead-lettered")
}

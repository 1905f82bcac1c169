// Package queue is a durable at-least-once job queue stored in the jobs table.
//
// State machine:
//
//	queued -> active -> completed
//	             |----> queued     (retryable failure, after backoff)
//	             |----> failed     (dead letter, terminal)
//	queued|active -> cancelled
//
// A claim leases the job for Config.Lease. A worker that dies before Ack
// leaves the lease to expire, after which the job is claimable again. Every
// state change out of active is guarded by the attempt number of the claim
// that made it, so a stale worker cannot overwrite a newer delivery.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"reelclip/internal/logger"
	"reelclip/internal/models"
	"reelclip/internal/storage"
	"reelclip/internal/storage/sqlc"
)

// ErrLeaseLost is returned when a delivery no longer owns its job.
var ErrLeaseLost = errors.New("job lease lost")

// maxErrorLength bounds last_error and client-visible failure reasons.
const maxErrorLength = 1024

type Config struct {
	MaxAttempts  int
	Lease        time.Duration
	PollInterval time.Duration
	Backoff      Backoff
}

// Delivery is one claim of a job by a worker.
type Delivery struct {
	Job     models.Job
	Attempt int
	// Exhausted marks a job whose lease expired on its final attempt. It gets
	// no new attempt; the consumer must dead-letter it.
	Exhausted bool
}

type Queue struct {
	db       *storage.DB
	jobs     *storage.JobRepository
	cfg      Config
	notifier Notifier
	log      *logrus.Entry
	now      func() time.Time
}

func New(db *storage.DB, cfg Config, notifier Notifier, log logrus.FieldLogger) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 10 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Backoff.Base <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	return &Queue{
		db:       db,
		jobs:     storage.NewJobRepository(db),
		cfg:      cfg,
		notifier: notifier,
		log:      logger.Component(log, "queue"),
		now:      time.Now,
	}
}

// MaxAttempts is the attempt cap applied to newly enqueued jobs.
func (q *Queue) MaxAttempts() int {
	return q.cfg.MaxAttempts
}

// Enqueue inserts a queued job for uploadID inside the caller's transaction.
// Call Notify after the transaction commits.
func (q *Queue) Enqueue(ctx context.Context, tx *sqlc.Queries, jobID, uploadID string) (*models.Job, error) {
	now := q.now().UTC()
	job := models.Job{
		ID:          jobID,
		UploadID:    uploadID,
		Type:        models.JobTypeAnalyze,
		State:       models.JobStateQueued,
		MaxAttempts: q.cfg.MaxAttempts,
		NextRunAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return &job, nil
}

// Notify wakes a waiting consumer.
func (q *Queue) Notify(ctx context.Context) {
	if err := q.notifier.Notify(ctx); err != nil {
		q.log.WithError(err).Warn("failed to notify consumers; they will pick the job up on the next poll")
	}
}

// Dequeue blocks until a job can be claimed or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		d, err := q.TryDequeue(ctx)
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}
		if err := q.notifier.Wait(ctx, q.cfg.PollInterval); err != nil {
			return nil, err
		}
	}
}

// TryDequeue claims the next claimable job, or returns (nil, nil) when none is due.
func (q *Queue) TryDequeue(ctx context.Context) (*Delivery, error) {
	var delivery *Delivery
	err := q.db.InTx(ctx, func(tx *sqlc.Queries) error {
		now := q.now().UTC()
		job, err := tx.NextClaimableJob(ctx, now)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to find claimable job: %w", err)
		}

		lease := now.Add(q.cfg.Lease)

		if job.State == models.JobStateActive && job.Attempts >= job.MaxAttempts {
			n, err := tx.RenewLease(ctx, sqlc.RenewLeaseParams{ID: job.ID, Attempts: job.Attempts, LeaseUntil: lease, Now: now})
			if err != nil {
				return fmt.Errorf("failed to renew lease: %w", err)
			}
			if n == 1 {
				job.LeaseUntil = &lease
				delivery = &Delivery{Job: job, Attempt: job.Attempts, Exhausted: true}
			}
			return nil
		}

		n, err := tx.ClaimJob(ctx, sqlc.ClaimJobParams{
			ID:         job.ID,
			FromState:  job.State,
			Attempts:   job.Attempts,
			LeaseUntil: lease,
			Now:        now,
		})
		if err != nil {
			return fmt.Errorf("failed to claim job: %w", err)
		}
		if n == 0 {
			return nil
		}

		redelivered := job.State == models.JobStateActive
		job.State = models.JobStateActive
		job.Attempts++
		job.LeaseUntil = &lease
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
		delivery = &Delivery{Job: job, Attempt: job.Attempts}
		if redelivered {
			q.log.WithFields(logrus.Fields{"job_id": job.ID, "attempt": job.Attempts}).Warn("lease expired, redelivering job")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if delivery != nil {
		q.log.WithFields(logrus.Fields{
			"job_id":    delivery.Job.ID,
			"upload_id": delivery.Job.UploadID,
			"attempt":   delivery.Attempt,
			"exhausted": delivery.Exhausted,
		}).Debug("claimed job")
	}
	return delivery, nil
}

// Ack marks the delivery completed inside the caller's transaction.
func (q *Queue) Ack(ctx context.Context, tx *sqlc.Queries, d *Delivery) error {
	n, err := tx.CompleteJob(ctx, sqlc.FinishJobParams{ID: d.Job.ID, Attempts: d.Attempt, Now: q.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Retry puts the delivery back to queued after the backoff for its attempt.
func (q *Queue) Retry(ctx context.Context, d *Delivery, cause error) (time.Time, error) {
	now := q.now().UTC()
	next := now.Add(q.cfg.Backoff.Delay(d.Attempt))
	n, err := q.db.Queries.RetryJob(ctx, sqlc.RetryJobParams{
		ID:        d.Job.ID,
		Attempts:  d.Attempt,
		LastError: Truncate(errorText(cause)),
		NextRunAt: next,
		Now:       now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to schedule retry: %w", err)
	}
	if n == 0 {
		return time.Time{}, ErrLeaseLost
	}
	return next, nil
}

// Release returns the delivery to queued without consuming its attempt.
// Used when a worker shuts down mid-job.
func (q *Queue) Release(ctx context.Context, d *Delivery) error {
	n, err := q.db.Queries.ReleaseJob(ctx, sqlc.FinishJobParams{ID: d.Job.ID, Attempts: d.Attempt, Now: q.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to release job: %w", err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

// DeadLetter moves the delivery to the terminal failed state inside the caller's transaction.
func (q *Queue) DeadLetter(ctx context.Context, tx *sqlc.Queries, d *Delivery, cause error) error {
	n, err := tx.FailJob(ctx, sqlc.FinishJobParams{
		ID:        d.Job.ID,
		Attempts:  d.Attempt,
		LastError: Truncate(errorText(cause)),
		Now:       q.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to dead-letter job: %w", err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Fail dead-letters the delivery on its own, for jobs with nothing else to settle.
func (q *Queue) Fail(ctx context.Context, d *Delivery, cause error) error {
	return q.DeadLetter(ctx, q.db.Queries, d, cause)
}

// Cancel moves a queued or active job to cancelled. It reports whether the
// job was in one of those states.
func (q *Queue) Cancel(ctx context.Context, tx *sqlc.Queries, jobID string, from ...string) (bool, error) {
	if len(from) == 0 {
		from = []string{models.JobStateQueued, models.JobStateActive}
	}
	n, err := tx.CancelJob(ctx, jobID, from, q.now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to cancel job: %w", err)
	}
	return n == 1, nil
}

// Inspect returns the live queue view of a job, or nil if unknown.
func (q *Queue) Inspect(ctx context.Context, jobID string) (*models.Job, error) {
	return q.jobs.GetByID(ctx, jobID)
}

// InspectUpload is Inspect keyed by upload id.
func (q *Queue) InspectUpload(ctx context.Context, uploadID string) (*models.Job, error) {
	return q.jobs.GetByUploadID(ctx, uploadID)
}

// Counts returns the number of jobs per state.
func (q *Queue) Counts(ctx context.Context) (map[string]int64, error) {
	return q.jobs.CountByState(ctx)
}

// Truncate limits a failure message to what is stored and shown to clients.
func Truncate(msg string) string {
	if len(msg) <= maxErrorLength {
		return msg
	}
	return strings.ToValidUTF8(msg[:maxErrorLength], "")
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

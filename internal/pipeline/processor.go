// Package pipeline processes one analysis job: it calls the analysis
// service, persists the transcript and segments, derives clips and settles
// the job, the upload and the owner's credits.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"reelclip/internal/analysis"
	"reelclip/internal/clips"
	"reelclip/internal/ledger"
	"reelclip/internal/logger"
	"reelclip/internal/models"
	"reelclip/internal/queue"
	"reelclip/internal/storage"
	"reelclip/internal/storage/sqlc"
	"reelclip/internal/worker"
)

// errCancelled aborts the persistence transaction when the upload was
// cancelled while analysis ran.
var errCancelled = errors.New("upload cancelled")

type Config struct {
	AnalysisTimeout time.Duration
	Clips           clips.Options
}

// Processor is the worker handler for analyze jobs.
type Processor struct {
	db       *storage.DB
	queue    *queue.Queue
	ledger   *ledger.Ledger
	analyzer analysis.Collaborator
	cfg      Config
	log      *logrus.Entry
	now      func() time.Time
}

var _ worker.Handler = (*Processor)(nil)

func NewProcessor(db *storage.DB, q *queue.Queue, l *ledger.Ledger, analyzer analysis.Collaborator, cfg Config, log logrus.FieldLogger) *Processor {
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = 5 * time.Minute
	}
	return &Processor{
		db:       db,
		queue:    q,
		ledger:   l,
		analyzer: analyzer,
		cfg:      cfg,
		log:      logger.Component(log, "pipeline"),
		now:      time.Now,
	}
}

// Handle runs one attempt of an analyze job.
func (p *Processor) Handle(ctx context.Context, d *queue.Delivery) error {
	log := p.log.WithFields(logrus.Fields{"job_id": d.Job.ID, "upload_id": d.Job.UploadID, "attempt": d.Attempt})

	upload, err := p.db.Queries.GetUploadByID(ctx, d.Job.UploadID)
	if err == sql.ErrNoRows {
		return analysis.Permanent(fmt.Errorf("upload %s not found", d.Job.UploadID))
	}
	if err != nil {
		return fmt.Errorf("failed to get upload: %w", err)
	}

	// 1. cancellation check before any work
	if upload.Status == models.UploadStatusCancelled {
		return p.settleCancelled(ctx, d, log)
	}

	started, err := p.markProcessing(ctx, upload)
	if err != nil {
		return err
	}
	if !started {
		return p.settleCancelled(ctx, d, log)
	}

	// 2. analysis, bounded
	actx, cancel := context.WithTimeout(ctx, p.cfg.AnalysisTimeout)
	result, err := p.analyzer.Analyze(actx, analysis.Request{
		UploadID: upload.ID,
		Source:   upload.Source,
		Kind:     upload.Kind,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	// 3. cancellation check after the call
	current, err := p.db.Queries.GetUploadByID(ctx, upload.ID)
	if err != nil {
		return fmt.Errorf("failed to reload upload: %w", err)
	}
	if current.Status == models.UploadStatusCancelled {
		return p.settleCancelled(ctx, d, log)
	}

	// 4. persist, derive, complete
	var clipCount int
	err = p.db.InTx(ctx, func(q *sqlc.Queries) error {
		var err error
		clipCount, err = p.persist(ctx, q, d, upload, result)
		return err
	})
	if errors.Is(err, errCancelled) {
		return p.settleCancelled(ctx, d, log)
	}
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{"segments": len(result.Segments), "clips": clipCount}).Info("upload processed")
	return nil
}

func (p *Processor) markProcessing(ctx context.Context, upload models.Upload) (bool, error) {
	started := false
	err := p.db.InTx(ctx, func(q *sqlc.Queries) error {
		now := p.now().UTC()
		n, err := q.TransitionUpload(ctx, sqlc.UploadTransitionParams{
			StatusTransitionParams: sqlc.StatusTransitionParams{
				ID:        upload.ID,
				From:      []string{models.UploadStatusQueued, models.UploadStatusProcessing},
				To:        models.UploadStatusProcessing,
				UpdatedAt: now,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to mark upload processing: %w", err)
		}
		if n == 0 {
			return nil
		}
		if _, err := q.TransitionProject(ctx, sqlc.StatusTransitionParams{
			ID:        upload.ProjectID,
			From:      []string{models.ProjectStatusCreated, models.ProjectStatusProcessing},
			To:        models.ProjectStatusProcessing,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("failed to mark project processing: %w", err)
		}
		started = true
		return nil
	})
	return started, err
}

// persist writes the analysis result and everything derived from it. Either
// all of it becomes visible together with the completed job, or none of it.
func (p *Processor) persist(ctx context.Context, q *sqlc.Queries, d *queue.Delivery, upload models.Upload, result *analysis.Result) (int, error) {
	now := p.now().UTC()

	if err := q.CreateTranscript(ctx, models.Transcript{
		ID:         uuid.New().String(),
		UploadID:   upload.ID,
		Language:   result.Transcript.Language,
		Confidence: result.Transcript.Confidence,
		TextRef:    result.Transcript.TextRef,
		CreatedAt:  now,
	}); err != nil {
		return 0, fmt.Errorf("failed to save transcript: %w", err)
	}

	for _, s := range result.Segments {
		if err := q.CreateSegment(ctx, models.Segment{
			ID:        uuid.New().String(),
			UploadID:  upload.ID,
			StartS:    s.StartS,
			EndS:      s.EndS,
			Score:     s.Score,
			Reason:    s.Reason,
			CreatedAt: now,
		}); err != nil {
			return 0, fmt.Errorf("failed to save segment: %w", err)
		}
	}

	// derive from what was persisted, not from the response
	segments, err := q.ListSegmentsByUpload(ctx, upload.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load segments: %w", err)
	}
	derived := clips.Build(clips.Derive(segments, p.cfg.Clips), upload.ProjectID, upload.ID, uuid.NewString)
	for _, c := range derived {
		c.CreatedAt = now
		if err := q.CreateClip(ctx, c); err != nil {
			return 0, fmt.Errorf("failed to save clip: %w", err)
		}
	}

	n, err := q.TransitionUpload(ctx, sqlc.UploadTransitionParams{
		StatusTransitionParams: sqlc.StatusTransitionParams{
			ID:        upload.ID,
			From:      []string{models.UploadStatusProcessing},
			To:        models.UploadStatusCompleted,
			UpdatedAt: now,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to complete upload: %w", err)
	}
	if n == 0 {
		return 0, errCancelled
	}
	if _, err := q.TransitionProject(ctx, sqlc.StatusTransitionParams{
		ID:        upload.ProjectID,
		From:      []string{models.ProjectStatusProcessing},
		To:        models.ProjectStatusCompleted,
		UpdatedAt: now,
	}); err != nil {
		return 0, fmt.Errorf("failed to complete project: %w", err)
	}

	if err := p.queue.Ack(ctx, q, d); err != nil {
		return 0, err
	}
	return len(derived), nil
}

// settleCancelled finishes a job whose upload was cancelled: the job becomes
// cancelled and the admission charge is refunded. This is not a failure.
func (p *Processor) settleCancelled(ctx context.Context, d *queue.Delivery, log *logrus.Entry) error {
	refunded := false
	err := p.db.InTx(ctx, func(q *sqlc.Queries) error {
		if _, err := p.queue.Cancel(ctx, q, d.Job.ID); err != nil {
			return err
		}
		var err error
		refunded, err = p.ledger.RefundAdmission(ctx, q, d.Job.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to settle cancelled job: %w", err)
	}
	log.WithField("refunded", refunded).Info("upload cancelled, job settled")
	return nil
}

// Abandon dead-letters the job, fails the upload and project with a readable
// reason and refunds the admission charge, all in one transaction.
func (p *Processor) Abandon(ctx context.Context, d *queue.Delivery, cause error) error {
	log := p.log.WithFields(logrus.Fields{"job_id": d.Job.ID, "upload_id": d.Job.UploadID, "attempt": d.Attempt})
	reason := queue.Truncate(FailureReason(cause, d.Attempt))

	cancelled := false
	refunded := false
	err := p.db.InTx(ctx, func(q *sqlc.Queries) error {
		upload, err := q.GetUploadByID(ctx, d.Job.UploadID)
		switch {
		case err == sql.ErrNoRows:
			if err := p.queue.DeadLetter(ctx, q, d, cause); err != nil {
				return err
			}
		case err != nil:
			return fmt.Errorf("failed to get upload: %w", err)
		case upload.Status == models.UploadStatusCancelled:
			cancelled = true
			if _, err := p.queue.Cancel(ctx, q, d.Job.ID); err != nil {
				return err
			}
		default:
			if err := p.queue.DeadLetter(ctx, q, d, cause); err != nil {
				return err
			}
			if err := p.fail(ctx, q, upload, reason); err != nil {
				return err
			}
		}

		refunded, err = p.ledger.RefundAdmission(ctx, q, d.Job.ID)
		return err
	})
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{"refunded": refunded, "cancelled": cancelled, "reason": reason}).Warn("job abandoned")
	return nil
}

func (p *Processor) fail(ctx context.Context, q *sqlc.Queries, upload models.Upload, reason string) error {
	now := p.now().UTC()
	if _, err := q.TransitionUpload(ctx, sqlc.UploadTransitionParams{
		StatusTransitionParams: sqlc.StatusTransitionParams{
			ID:        upload.ID,
			From:      []string{models.UploadStatusQueued, models.UploadStatusProcessing},
			To:        models.UploadStatusFailed,
			UpdatedAt: now,
		},
		FailureReason: reason,
	}); err != nil {
		return fmt.Errorf("failed to fail upload: %w", err)
	}
	if _, err := q.TransitionProject(ctx, sqlc.StatusTransitionParams{
		ID:        upload.ProjectID,
		From:      []string{models.ProjectStatusCreated, models.ProjectStatusProcessing},
		To:        models.ProjectStatusFailed,
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("failed to fail project: %w", err)
	}
	return nil
}

// FailureReason renders the client-visible explanation of a terminal failure.
func FailureReason(cause error, attempts int) string {
	switch {
	case cause == nil:
		return "processing failed"
	case errors.Is(cause, worker.ErrExhausted):
		return fmt.Sprintf("processing did not finish after %d attempts", attempts)
	case analysis.IsPermanent(cause):
		return "the video could not be analyzed: " + cause.Error()
	default:
		return fmt.Sprintf("processing failed after %d attempts: %s", attempts, cause.Error())
	}
}

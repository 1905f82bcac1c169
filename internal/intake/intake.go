// Package intake is the write entry point: it admits submissions against the
// credit ledger and creates the project, upload and job for each one.
package intake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"reelclip/internal/ledger"
	"reelclip/internal/logger"
	"reelclip/internal/models"
	"reelclip/internal/queue"
	"reelclip/internal/source"
	"reelclip/internal/storage"
	"reelclip/internal/storage/sqlc"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidSource       = errors.New("invalid source")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrNotFound            = errors.New("upload not found")
	ErrAlreadyTerminal     = errors.New("upload already finished")
)

const maxTitleLength = 200

// TitleResolver looks up a display title for a remote source.
type TitleResolver interface {
	Title(ctx context.Context, d source.Descriptor) (string, error)
}

type Config struct {
	AdmissionCost    int64
	AdmissionTimeout time.Duration
	// TitleTimeout bounds all title resolvers together. It runs before the
	// admission deadline starts.
	TitleTimeout time.Duration
}

// Gateway admits submissions and cancels uploads.
type Gateway struct {
	db     *storage.DB
	ledger *ledger.Ledger
	queue  *queue.Queue
	titles []TitleResolver
	cfg    Config
	log    *logrus.Entry
	now    func() time.Time
}

func NewGateway(db *storage.DB, l *ledger.Ledger, q *queue.Queue, cfg Config, log logrus.FieldLogger) *Gateway {
	if cfg.AdmissionCost <= 0 {
		cfg.AdmissionCost = 10
	}
	if cfg.AdmissionTimeout <= 0 {
		cfg.AdmissionTimeout = 5 * time.Second
	}
	if cfg.TitleTimeout <= 0 {
		cfg.TitleTimeout = 2 * time.Second
	}
	return &Gateway{
		db:     db,
		ledger: l,
		queue:  q,
		cfg:    cfg,
		log:    logger.Component(log, "intake"),
		now:    time.Now,
	}
}

// WithTitleResolver adds a lookup used when a remote submission has no
// title. Resolvers are tried in the order they were added.
func (g *Gateway) WithTitleResolver(r TitleResolver) *Gateway {
	g.titles = append(g.titles, r)
	return g
}

// AdmissionCost is the credit charge per submission.
func (g *Gateway) AdmissionCost() int64 {
	return g.cfg.AdmissionCost
}

// SubmitRequest describes one video to process.
type SubmitRequest struct {
	OwnerID string
	Title   string
	Source  string
	// Kind is file or remote_url; empty infers it from Source.
	Kind string
}

// Receipt identifies what was created for an admitted submission.
type Receipt struct {
	JobID     string `json:"job_id"`
	UploadID  string `json:"upload_id"`
	ProjectID string `json:"project_id"`
}

// Submit validates req, debits the admission cost and, only if the debit is
// granted, creates the project, upload and queued job in the same
// transaction. A refused debit leaves no rows behind.
func (g *Gateway) Submit(ctx context.Context, req SubmitRequest) (*Receipt, error) {
	owner := strings.TrimSpace(req.OwnerID)
	if owner == "" {
		return nil, fmt.Errorf("%w: owner_id is required", ErrInvalidRequest)
	}
	desc, err := source.Parse(req.Source, req.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	title := g.title(ctx, req.Title, desc)

	ctx, cancel := context.WithTimeout(ctx, g.cfg.AdmissionTimeout)
	defer cancel()

	receipt := &Receipt{
		JobID:     uuid.New().String(),
		UploadID:  uuid.New().String(),
		ProjectID: uuid.New().String(),
	}
	log := g.log.WithFields(logrus.Fields{"owner_id": owner, "job_id": receipt.JobID, "upload_id": receipt.UploadID})

	err = g.db.InTx(ctx, func(q *sqlc.Queries) error {
		outcome, err := g.ledger.TryDebit(ctx, q, owner, g.cfg.AdmissionCost, receipt.JobID)
		if err != nil {
			return err
		}
		if outcome == ledger.InsufficientBalance {
			return ErrInsufficientCredits
		}

		now := g.now().UTC()
		if err := q.CreateProject(ctx, models.Project{
			ID:        receipt.ProjectID,
			OwnerID:   owner,
			Title:     title,
			Status:    models.ProjectStatusProcessing,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}
		if err := q.CreateUpload(ctx, models.Upload{
			ID:        receipt.UploadID,
			ProjectID: receipt.ProjectID,
			Source:    desc.Value,
			Kind:      desc.Kind,
			Status:    models.UploadStatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("failed to create upload: %w", err)
		}
		if _, err := g.queue.Enqueue(ctx, q, receipt.JobID, receipt.UploadID); err != nil {
			return err
		}
		return nil
	})
	if errors.Is(err, ErrInsufficientCredits) {
		log.Info("submission refused: insufficient credits")
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to admit submission: %w", err)
	}

	g.queue.Notify(ctx)
	log.WithField("kind", desc.Kind).Info("submission admitted")
	return receipt, nil
}

func (g *Gateway) title(ctx context.Context, requested string, desc source.Descriptor) string {
	title := strings.TrimSpace(requested)
	if title == "" && desc.Kind == models.SourceKindRemoteURL && len(g.titles) > 0 {
		ctx, cancel := context.WithTimeout(ctx, g.cfg.TitleTimeout)
		defer cancel()
		for _, r := range g.titles {
			resolved, err := r.Title(ctx, desc)
			if err != nil {
				g.log.WithError(err).WithField("source", desc.Value).Debug("title lookup failed")
				continue
			}
			if title = strings.TrimSpace(resolved); title != "" {
				break
			}
		}
	}
	if title == "" {
		title = fmt.Sprintf("Upload %s", g.now().UTC().Format("2006-01-02 15:04"))
	}
	if len([]rune(title)) > maxTitleLength {
		title = string([]rune(title)[:maxTitleLength])
	}
	return title
}

// CancelResult reports how a cancellation was settled.
type CancelResult struct {
	UploadID string `json:"upload_id"`
	Status   string `json:"status"`
	// Refunded is true when the job was still queued and its admission
	// charge was returned immediately. Active jobs are settled by the worker.
	Refunded bool `json:"refunded"`
}

// Cancel marks the upload and its project cancelled. Only uploads that are
// queued or processing can be cancelled.
func (g *Gateway) Cancel(ctx context.Context, uploadID string) (*CancelResult, error) {
	result := &CancelResult{UploadID: uploadID, Status: models.UploadStatusCancelled}

	err := g.db.InTx(ctx, func(q *sqlc.Queries) error {
		upload, err := q.GetUploadByID(ctx, uploadID)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get upload: %w", err)
		}
		if models.IsTerminalUploadStatus(upload.Status) {
			return ErrAlreadyTerminal
		}

		now := g.now().UTC()
		n, err := q.TransitionUpload(ctx, sqlc.UploadTransitionParams{
			StatusTransitionParams: sqlc.StatusTransitionParams{
				ID:        uploadID,
				From:      []string{models.UploadStatusQueued, models.UploadStatusProcessing},
				To:        models.UploadStatusCancelled,
				UpdatedAt: now,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to cancel upload: %w", err)
		}
		if n == 0 {
			return ErrAlreadyTerminal
		}
		if _, err := q.TransitionProject(ctx, sqlc.StatusTransitionParams{
			ID:        upload.ProjectID,
			From:      []string{models.ProjectStatusCreated, models.ProjectStatusProcessing},
			To:        models.ProjectStatusCancelled,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("failed to cancel project: %w", err)
		}

		job, err := q.GetJobByUploadID(ctx, uploadID)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get job: %w", err)
		}

		// a queued job never reaches a worker again, so settle it here
		cancelled, err := g.queue.Cancel(ctx, q, job.ID, models.JobStateQueued)
		if err != nil {
			return err
		}
		if cancelled {
			result.Refunded, err = g.ledger.RefundAdmission(ctx, q, job.ID)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.log.WithFields(logrus.Fields{"upload_id": uploadID, "refunded": result.Refunded}).Info("upload cancelled")
	return result, nil
}

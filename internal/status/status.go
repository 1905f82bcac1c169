// Package status assembles the client-facing view of an upload. Persisted
// upload state decides terminal outcomes; the job queue decides how far an
// in-flight upload has got. Progress is an estimate and never decides
// completion.
package status

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"reelclip/internal/clips"
	"reelclip/internal/logger"
	"reelclip/internal/models"
	"reelclip/internal/queue"
	"reelclip/internal/storage"
)

var ErrNotFound = errors.New("upload not found")

const (
	progressFloor = 5
	progressCeil  = 95
)

// Presigner turns a transcript text reference into a download URL.
type Presigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
}

type Config struct {
	// ExpectedProcessing is the typical time from submission to completion.
	ExpectedProcessing time.Duration
	TopSegments        int
}

type Transcript struct {
	models.Transcript
	TextURL string `json:"text_url,omitempty"`
}

// Status is the polling payload for one upload.
type Status struct {
	UploadID       string           `json:"upload_id"`
	ProjectID      string           `json:"project_id"`
	Title          string           `json:"title"`
	Status         string           `json:"status"`
	JobID          string           `json:"job_id,omitempty"`
	JobState       string           `json:"job_state,omitempty"`
	Progress       int              `json:"progress"`
	Attempts       int              `json:"attempts"`
	MaxAttempts    int              `json:"max_attempts"`
	FailureReason  string           `json:"failure_reason,omitempty"`
	Transcript     *Transcript      `json:"transcript,omitempty"`
	TopSegments    []models.Segment `json:"top_segments,omitempty"`
	Clips          []models.Clip    `json:"clips"`
	ClipsGenerated int              `json:"clips_generated"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsTerminal reports whether the upload reached a final state.
func (s *Status) IsTerminal() bool {
	return models.IsTerminalUploadStatus(s.Status)
}

type Tracker struct {
	projects  *storage.ProjectRepository
	results   *storage.ResultRepository
	queue     *queue.Queue
	presigner Presigner
	cfg       Config
	log       *logrus.Entry
	now       func() time.Time
}

func NewTracker(db *storage.DB, q *queue.Queue, cfg Config, log logrus.FieldLogger) *Tracker {
	if cfg.ExpectedProcessing <= 0 {
		cfg.ExpectedProcessing = 3 * time.Minute
	}
	if cfg.TopSegments <= 0 {
		cfg.TopSegments = 5
	}
	return &Tracker{
		projects: storage.NewProjectRepository(db),
		results:  storage.NewResultRepository(db),
		queue:    q,
		cfg:      cfg,
		log:      logger.Component(log, "status"),
		now:      time.Now,
	}
}

// WithPresigner enables download URLs for transcript text.
func (t *Tracker) WithPresigner(p Presigner) *Tracker {
	t.presigner = p
	return t
}

// GetStatus returns the current view of uploadID.
func (t *Tracker) GetStatus(ctx context.Context, uploadID string) (*Status, error) {
	upload, err := t.projects.GetUpload(ctx, uploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	if upload == nil {
		return nil, ErrNotFound
	}
	project, err := t.projects.GetByID(ctx, upload.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	job, err := t.queue.InspectUpload(ctx, uploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect job: %w", err)
	}

	s := &Status{
		UploadID:      upload.ID,
		ProjectID:     upload.ProjectID,
		Status:        upload.Status,
		FailureReason: upload.FailureReason,
		Clips:         []models.Clip{},
		CreatedAt:     upload.CreatedAt,
		UpdatedAt:     upload.UpdatedAt,
	}
	if project != nil {
		s.Title = project.Title
	}
	if job != nil {
		s.JobID = job.ID
		s.JobState = job.State
		s.Attempts = job.Attempts
		s.MaxAttempts = job.MaxAttempts
	}

	if s.IsTerminal() {
		s.Progress = 100
		if upload.Status == models.UploadStatusCompleted {
			if err := t.loadResults(ctx, s); err != nil {
				return nil, err
			}
		}
		return s, nil
	}

	// in flight: the queue knows whether a worker has picked it up
	if job != nil && (job.State == models.JobStateActive || job.Attempts > 0) {
		s.Status = models.UploadStatusProcessing
	}
	s.Progress = Progress(t.now().Sub(upload.CreatedAt), t.cfg.ExpectedProcessing)
	return s, nil
}

func (t *Tracker) loadResults(ctx context.Context, s *Status) error {
	transcript, err := t.results.GetTranscript(ctx, s.UploadID)
	if err != nil {
		return fmt.Errorf("failed to get transcript: %w", err)
	}
	if transcript != nil {
		s.Transcript = &Transcript{Transcript: *transcript}
		if t.presigner != nil && transcript.TextRef != "" {
			u, err := t.presigner.PresignGet(ctx, transcript.TextRef)
			if err != nil {
				t.log.WithError(err).WithField("upload_id", s.UploadID).Warn("failed to presign transcript")
			} else {
				s.Transcript.TextURL = u
			}
		}
	}

	segments, err := t.results.ListSegments(ctx, s.UploadID)
	if err != nil {
		return fmt.Errorf("failed to list segments: %w", err)
	}
	s.TopSegments = topSegments(segments, t.cfg.TopSegments)

	list, err := t.results.ListClips(ctx, s.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to list clips: %w", err)
	}
	for _, c := range list {
		if c.UploadID == s.UploadID {
			s.Clips = append(s.Clips, c)
		}
	}
	s.ClipsGenerated = len(s.Clips)
	return nil
}

// topSegments ranks segments the same way clips are ranked.
func topSegments(segments []models.Segment, n int) []models.Segment {
	byID := make(map[string]models.Segment, len(segments))
	for _, seg := range segments {
		byID[seg.ID] = seg
	}
	ranked := clips.Derive(segments, clips.Options{TopK: n})
	out := make([]models.Segment, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, byID[c.SegmentID])
	}
	return out
}

// Progress estimates completion of an in-flight upload from the time since
// submission. It starts at 5, approaches 95 and never decreases as elapsed grows.
func Progress(elapsed, expected time.Duration) int {
	if elapsed < 0 {
		elapsed = 0
	}
	if expected <= 0 {
		return progressFloor
	}
	ratio := float64(elapsed) / float64(expected)
	p := progressFloor + (progressCeil-progressFloor)*(1-math.Exp(-ratio))
	return int(math.Min(math.Floor(p), progressCeil))
}

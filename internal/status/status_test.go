package status

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelclip/internal/analysis"
	"reelclip/internal/intake"
	"reelclip/internal/ledger"
	"reelclip/internal/logger"
	"reelclip/internal/models"
	"reelclip/internal/pipeline"
	"reelclip/internal/queue"
	"reelclip/internal/storage"
	"reelclip/internal/worker"
)

type fakePresigner struct{}

func (fakePresigner) PresignGet(ctx context.Context, key string) (string, error) {
	return "https://storage.example.com/" + key + "?sig=1", nil
}

type fixture struct {
	queue     *queue.Queue
	gateway   *intake.Gateway
	processor *pipeline.Processor
	tracker   *Tracker
	receipt   *intake.Receipt
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "status.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logger.Discard()
	l := ledger.New(db)
	q := queue.New(db, queue.Config{MaxAttempts: 3}, nil, log)
	f := &fixture{
		queue:     q,
		gateway:   intake.NewGateway(db, l, q, intake.Config{AdmissionCost: 10}, log),
		processor: pipeline.NewProcessor(db, q, l, analysis.NewStub(), pipeline.Config{}, log),
		tracker:   NewTracker(db, q, Config{ExpectedProcessing: time.Minute}, log).WithPresigner(fakePresigner{}),
	}

	ctx := context.Background()
	if _, err := l.Grant(ctx, "alice", 10); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	f.receipt, err = f.gateway.Submit(ctx, intake.SubmitRequest{OwnerID: "alice", Title: "Keynote", Source: "uploads/alice/keynote.mp4"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return f
}

func (f *fixture) status(t *testing.T) *Status {
	t.Helper()
	s, err := f.tracker.GetStatus(context.Background(), f.receipt.UploadID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	return s
}

func (f *fixture) claim(t *testing.T) *queue.Delivery {
	t.Helper()
	d, err := f.queue.TryDequeue(context.Background())
	if err != nil || d == nil {
		t.Fatalf("TryDequeue = %v, %v", d, err)
	}
	return d
}

func TestGetStatusUnknownUpload(t *testing.T) {
	f := newFixture(t)
	if _, err := f.tracker.GetStatus(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetStatusQueuedThenProcessing(t *testing.T) {
	f := newFixture(t)

	s := f.status(t)
	if s.Status != models.UploadStatusQueued || s.JobState != models.JobStateQueued {
		t.Fatalf("status = %s / %s, want queued", s.Status, s.JobState)
	}
	if s.Title != "Keynote" || s.JobID != f.receipt.JobID || s.MaxAttempts != 3 {
		t.Fatalf("status = %+v", s)
	}
	if s.Progress < progressFloor || s.Progress > progressCeil {
		t.Fatalf("progress = %d", s.Progress)
	}
	if s.ClipsGenerated != 0 || len(s.Clips) != 0 || s.Transcript != nil {
		t.Fatalf("queued upload exposes results: %+v", s)
	}

	f.claim(t)
	s = f.status(t)
	if s.Status != models.UploadStatusProcessing || s.Attempts != 1 {
		t.Fatalf("status = %s attempts = %d, want processing/1", s.Status, s.Attempts)
	}
}

func TestGetStatusCompleted(t *testing.T) {
	f := newFixture(t)
	if err := f.processor.Handle(context.Background(), f.claim(t)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	s := f.status(t)
	if s.Status != models.UploadStatusCompleted || s.Progress != 100 {
		t.Fatalf("status = %s progress = %d", s.Status, s.Progress)
	}
	if s.Transcript == nil || !strings.HasPrefix(s.Transcript.TextURL, "https://storage.example.com/transcripts/") {
		t.Fatalf("transcript = %+v", s.Transcript)
	}
	if s.ClipsGenerated == 0 || s.ClipsGenerated != len(s.Clips) || s.ClipsGenerated > 10 {
		t.Fatalf("clips_generated = %d, clips = %d", s.ClipsGenerated, len(s.Clips))
	}
	if len(s.TopSegments) == 0 || len(s.TopSegments) > 5 {
		t.Fatalf("top segments = %d", len(s.TopSegments))
	}
	for i := 1; i < len(s.TopSegments); i++ {
		if s.TopSegments[i].Score > s.TopSegments[i-1].Score {
			t.Fatalf("top segments not ranked: %+v", s.TopSegments)
		}
	}
	if s.TopSegments[0].Score != s.Clips[0].Score {
		t.Fatalf("best segment %.1f differs from best clip %.1f", s.TopSegments[0].Score, s.Clips[0].Score)
	}
}

func TestGetStatusFailedShowsReason(t *testing.T) {
	f := newFixture(t)
	d := f.claim(t)
	if err := f.processor.Abandon(context.Background(), d, worker.ErrExhausted); err != nil {
		t.Fatalf("Abandon: %v", err)
	}

	s := f.status(t)
	if s.Status != models.UploadStatusFailed || s.Progress != 100 {
		t.Fatalf("status = %s progress = %d", s.Status, s.Progress)
	}
	if s.FailureReason == "" || s.JobState != models.JobStateFailed {
		t.Fatalf("status = %+v", s)
	}
}

func TestGetStatusCancelled(t *testing.T) {
	f := newFixture(t)
	if _, err := f.gateway.Cancel(context.Background(), f.receipt.UploadID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	s := f.status(t)
	if s.Status != models.UploadStatusCancelled || s.Progress != 100 || len(s.Clips) != 0 {
		t.Fatalf("status = %+v", s)
	}
}

func TestGetStatusProgressNeverDecreases(t *testing.T) {
	f := newFixture(t)
	base := time.Now()
	last := 0
	for i := 0; i < 20; i++ {
		at := base.Add(time.Duration(i) * 15 * time.Second)
		f.tracker.now = func() time.Time { return at }
		s := f.status(t)
		if s.Progress < last {
			t.Fatalf("progress went from %d to %d", last, s.Progress)
		}
		last = s.Progress
	}
	if last < 90 || last > progressCeil {
		t.Fatalf("progress after ~5m = %d, want between 90 and %d", last, progressCeil)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		elapsed  time.Duration
		expected time.Duration
		want     int
	}{
		{0, time.Minute, 5},
		{-time.Second, time.Minute, 5},
		{time.Minute, time.Minute, 61},
		{2 * time.Minute, time.Minute, 82},
		{time.Hour, time.Minute, 95},
		{time.Minute, 0, 5},
	}
	for _, tt := range tests {
		if got := Progress(tt.elapsed, tt.expected); got != tt.want {
			t.Errorf("Progress(%v, %v) = %d, want %d", tt.elapsed, tt.expected, got, tt.want)
		}
	}
}

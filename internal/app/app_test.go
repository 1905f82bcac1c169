package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"reelclip/internal/config"
	"reelclip/internal/intake"
	"reelclip/internal/logger"
	"reelclip/internal/models"
)

func TestNewRunsSubmissionsEndToEnd(t *testing.T) {
	cfg := config.FromEnv()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "app.db")
	cfg.AnalysisURL = ""
	cfg.RedisAddr = ""
	cfg.MinioEndpoint = ""
	cfg.WorkerPoll = 10 * time.Millisecond
	cfg.WorkerConcurrency = 2

	a, err := New(context.Background(), cfg, logger.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	if _, err := a.Ledger.Grant(ctx, "alice", 15); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	receipt, err := a.Gateway.Submit(ctx, intake.SubmitRequest{OwnerID: "alice", Title: "Demo", Source: "uploads/alice/demo.mp4"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	w := a.NewWorker()
	w.Start(ctx)
	defer w.Stop()

	deadline := time.Now().Add(10 * time.Second)
	for {
		s, err := a.Tracker.GetStatus(ctx, receipt.UploadID)
		if err != nil {
			t.Fatalf("GetStatus: %v", err)
		}
		if s.IsTerminal() {
			if s.Status != models.UploadStatusCompleted || s.ClipsGenerated == 0 {
				t.Fatalf("status = %+v", s)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("upload still %s", s.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	balance, _ := a.Ledger.Balance(ctx, "alice")
	if balance != 5 {
		t.Fatalf("balance = %d, want 5", balance)
	}
}

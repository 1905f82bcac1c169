package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"reelclip/internal/models"
	"reelclip/internal/storage"
	"reelclip/internal/storage/sqlc"
)

func newTestLedger(t *testing.T) (*Ledger, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), db
}

var errRefused = errors.New("debit refused")

// debit runs TryDebit in its own transaction the way the intake gateway does.
func debit(ctx context.Context, l *Ledger, owner string, amount int64, jobRef string) error {
	return l.db.InTx(ctx, func(q *sqlc.Queries) error {
		outcome, err := l.TryDebit(ctx, q, owner, amount, jobRef)
		if err != nil {
			return err
		}
		if outcome == InsufficientBalance {
			return errRefused
		}
		return nil
	})
}

func TestTryDebit(t *testing.T) {
	tests := []struct {
		name    string
		grant   int64
		amount  int64
		want    Outcome
		balance int64
	}{
		{"covered", 15, 10, Granted, 5},
		{"exact", 10, 10, Granted, 0},
		{"short", 5, 10, InsufficientBalance, 5},
		{"no entries", 0, 10, InsufficientBalance, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, db := newTestLedger(t)
			ctx := context.Background()
			if tt.grant > 0 {
				if _, err := l.Grant(ctx, "owner", tt.grant); err != nil {
					t.Fatalf("Grant: %v", err)
				}
			}

			var got Outcome
			err := db.InTx(ctx, func(q *sqlc.Queries) error {
				var err error
				got, err = l.TryDebit(ctx, q, "owner", tt.amount, "job-1")
				return err
			})
			if err != nil {
				t.Fatalf("TryDebit: %v", err)
			}
			if got != tt.want {
				t.Errorf("outcome = %v, want %v", got, tt.want)
			}

			balance, err := l.Balance(ctx, "owner")
			if err != nil {
				t.Fatalf("Balance: %v", err)
			}
			if balance != tt.balance {
				t.Errorf("balance = %d, want %d", balance, tt.balance)
			}
		})
	}
}

func TestInvalidAmounts(t *testing.T) {
	l, db := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Grant(ctx, "owner", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Grant(0) err = %v", err)
	}
	if _, err := l.Refund(ctx, db.Queries, "owner", -1, "job"); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Refund(-1) err = %v", err)
	}
	if err := debit(ctx, l, "owner", 0, "job"); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("debit(0) err = %v", err)
	}
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	if _, err := l.Grant(ctx, "owner", 25); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := debit(ctx, l, "owner", 10, "job-"+string(rune('a'+i)))
			if err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
				return
			}
			if !errors.Is(err, errRefused) {
				t.Errorf("Debit: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if granted != 2 {
		t.Fatalf("granted = %d, want 2", granted)
	}
	balance, err := l.Balance(ctx, "owner")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 5 {
		t.Fatalf("balance = %d, want 5", balance)
	}
}

func TestRefundIsOncePerJob(t *testing.T) {
	l, db := newTestLedger(t)
	ctx := context.Background()
	if _, err := l.Grant(ctx, "owner", 10); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if err := debit(ctx, l, "owner", 10, "job-1"); err != nil {
		t.Fatalf("Debit: %v", err)
	}

	for i, want := range []bool{true, false, false} {
		wrote, err := l.Refund(ctx, db.Queries, "owner", 10, "job-1")
		if err != nil {
			t.Fatalf("Refund #%d: %v", i, err)
		}
		if wrote != want {
			t.Fatalf("Refund #%d wrote = %v, want %v", i, wrote, want)
		}
	}

	entries, err := l.JobEntries(ctx, "job-1")
	if err != nil {
		t.Fatalf("JobEntries: %v", err)
	}
	refunds := 0
	for _, e := range entries {
		if e.Reason == models.LedgerReasonRefund {
			refunds++
		}
	}
	if refunds != 1 {
		t.Fatalf("refund entries = %d, want 1", refunds)
	}

	balance, _ := l.Balance(ctx, "owner")
	if balance != 10 {
		t.Fatalf("balance = %d, want 10", balance)
	}
}

func TestRefundAdmission(t *testing.T) {
	l, db := newTestLedger(t)
	ctx := context.Background()
	if _, err := l.Grant(ctx, "owner", 15); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if err := debit(ctx, l, "owner", 10, "job-1"); err != nil {
		t.Fatalf("Debit: %v", err)
	}

	wrote, err := l.RefundAdmission(ctx, db.Queries, "job-unknown")
	if err != nil || wrote {
		t.Fatalf("refund of uncharged job = %v, %v", wrote, err)
	}

	for i, want := range []bool{true, false} {
		wrote, err := l.RefundAdmission(ctx, db.Queries, "job-1")
		if err != nil {
			t.Fatalf("RefundAdmission #%d: %v", i, err)
		}
		if wrote != want {
			t.Fatalf("RefundAdmission #%d wrote = %v, want %v", i, wrote, want)
		}
	}

	balance, _ := l.Balance(ctx, "owner")
	if balance != 15 {
		t.Fatalf("balance = %d, want 15", balance)
	}
}

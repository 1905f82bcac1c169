// Package ledger keeps per-owner credit balances as an append-only list of
// signed entries. The balance is the sum of an owner's deltas.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reelclip/internal/models"
	"reelclip/internal/storage"
	"reelclip/internal/storage/sqlc"
)

var (
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Outcome is the result of a TryDebit call.
type Outcome int

const (
	Granted Outcome = iota
	InsufficientBalance
)

func (o Outcome) String() string {
	switch o {
	case Granted:
		return "granted"
	case InsufficientBalance:
		return "insufficient_balance"
	default:
		return "unknown"
	}
}

// Ledger reads balances directly and writes entries either standalone or
// inside a caller-owned transaction.
type Ledger struct {
	db  *storage.DB
	now func() time.Time
}

func New(db *storage.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// TryDebit appends a debit of amount for owner, referencing jobRef, if and only
// if the current balance covers it. The check and the insert are one statement,
// so concurrent debits for the same owner cannot both pass a stale balance.
func (l *Ledger) TryDebit(ctx context.Context, q *sqlc.Queries, owner string, amount int64, jobRef string) (Outcome, error) {
	if amount <= 0 {
		return InsufficientBalance, ErrInvalidAmount
	}
	n, err := q.InsertDebitIfSufficient(ctx, sqlc.InsertDebitParams{
		ID:        uuid.New().String(),
		OwnerID:   owner,
		Amount:    amount,
		Reason:    models.LedgerReasonAdmission,
		JobID:     jobRef,
		CreatedAt: l.now().UTC(),
	})
	if err != nil {
		return InsufficientBalance, fmt.Errorf("failed to debit %s: %w", owner, err)
	}
	if n == 0 {
		return InsufficientBalance, nil
	}
	return Granted, nil
}

// Refund credits amount back to owner for jobRef. At most one refund entry
// exists per job; the returned bool reports whether this call wrote it.
func (l *Ledger) Refund(ctx context.Context, q *sqlc.Queries, owner string, amount int64, jobRef string) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	if jobRef == "" {
		return false, errors.New("refund requires a job reference")
	}
	n, err := q.InsertLedgerEntry(ctx, models.LedgerEntry{
		ID:        uuid.New().String(),
		OwnerID:   owner,
		Delta:     amount,
		Reason:    models.LedgerReasonRefund,
		JobID:     jobRef,
		CreatedAt: l.now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to refund job %s: %w", jobRef, err)
	}
	return n == 1, nil
}

// Grant tops up an owner's balance outside any job.
func (l *Ledger) Grant(ctx context.Context, owner string, amount int64) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	entry := models.LedgerEntry{
		ID:        uuid.New().String(),
		OwnerID:   owner,
		Delta:     amount,
		Reason:    models.LedgerReasonGrant,
		CreatedAt: l.now().UTC(),
	}
	if _, err := l.db.Queries.InsertLedgerEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to grant credits to %s: %w", owner, err)
	}
	return &entry, nil
}

// Balance returns the sum of all entries for owner.
func (l *Ledger) Balance(ctx context.Context, owner string) (int64, error) {
	return l.db.Queries.SumLedgerByOwner(ctx, owner)
}

// Entries lists owner's entries oldest first.
func (l *Ledger) Entries(ctx context.Context, owner string) ([]models.LedgerEntry, error) {
	return l.db.Queries.ListLedgerByOwner(ctx, owner)
}

// JobEntries lists the entries that reference a job.
func (l *Ledger) JobEntries(ctx context.Context, jobRef string) ([]models.LedgerEntry, error) {
	return l.db.Queries.ListLedgerByJob(ctx, jobRef)
}

// RefundAdmission refunds the admission debit recorded for jobRef to the
// owner it was charged to. It writes nothing when the job was never charged
// or was already refunded, and reports whether a refund entry was written.
func (l *Ledger) RefundAdmission(ctx context.Context, q *sqlc.Queries, jobRef string) (bool, error) {
	entries, err := q.ListLedgerByJob(ctx, jobRef)
	if err != nil {
		return false, fmt.Errorf("failed to load ledger entries for job %s: %w", jobRef, err)
	}
	for _, e := range entries {
		if e.Reason == models.LedgerReasonAdmission && e.Delta < 0 {
			return l.Refund(ctx, q, e.OwnerID, -e.Delta, jobRef)
		}
	}
	return false, nil
}

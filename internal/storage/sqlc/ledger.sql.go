package sqlc

import (
	"context"
	"database/sql"
	"time"

	"reelclip/internal/models"
)

const insertDebitIfSufficient = `-- name: InsertDebitIfSufficient :execrows
INSERT INTO ledger_entries (id, owner_id, delta, reason, job_id, created_at)
SELECT ?1, ?2, -?3, ?4, ?5, ?6
WHERE (SELECT COALESCE(SUM(delta), 0) FROM ledger_entries WHERE owner_id = ?2) >= ?3
`

type InsertDebitParams struct {
	ID        string
	OwnerID   string
	Amount    int64
	Reason    string
	JobID     string
	CreatedAt time.Time
}

// InsertDebitIfSufficient appends a debit of Amount only when the owner's
// current balance covers it. Zero rows affected means insufficient balance.
func (q *Queries) InsertDebitIfSufficient(ctx context.Context, arg InsertDebitParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertDebitIfSufficient,
		arg.ID,
		arg.OwnerID,
		arg.Amount,
		arg.Reason,
		nullString(arg.JobID),
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertLedgerEntry = `-- name: InsertLedgerEntry :execrows
INSERT INTO ledger_entries (id, owner_id, delta, reason, job_id, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT DO NOTHING
`

// InsertLedgerEntry returns 0 when an entry with the same (job_id, reason) exists.
func (q *Queries) InsertLedgerEntry(ctx context.Context, arg models.LedgerEntry) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertLedgerEntry,
		arg.ID,
		arg.OwnerID,
		arg.Delta,
		arg.Reason,
		nullString(arg.JobID),
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const sumLedgerByOwner = `-- name: SumLedgerByOwner :one
SELECT COALESCE(SUM(delta), 0) FROM ledger_entries WHERE owner_id = ?
`

func (q *Queries) SumLedgerByOwner(ctx context.Context, ownerID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, sumLedgerByOwner, ownerID)
	var balance int64
	err := row.Scan(&balance)
	return balance, err
}

const ledgerColumns = `id, owner_id, delta, reason, job_id, created_at`

const listLedgerByOwner = `-- name: ListLedgerByOwner :many
SELECT ` + ledgerColumns + `
FROM ledger_entries
WHERE owner_id = ?
ORDER BY created_at ASC, id ASC
`

func (q *Queries) ListLedgerByOwner(ctx context.Context, ownerID string) ([]models.LedgerEntry, error) {
	return q.listLedger(ctx, listLedgerByOwner, ownerID)
}

const listLedgerByJob = `-- name: ListLedgerByJob :many
SELECT ` + ledgerColumns + `
FROM ledger_entries
WHERE job_id = ?
ORDER BY created_at ASC, id ASC
`

func (q *Queries) ListLedgerByJob(ctx context.Context, jobID string) ([]models.LedgerEntry, error) {
	return q.listLedger(ctx, listLedgerByJob, jobID)
}

func (q *Queries) listLedger(ctx context.Context, query string, arg string) ([]models.LedgerEntry, error) {
	rows, err := q.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.LedgerEntry
	for rows.Next() {
		var i models.LedgerEntry
		var jobID sql.NullString
		if err := rows.Scan(
			&i.ID,
			&i.OwnerID,
			&i.Delta,
			&i.Reason,
			&jobID,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		i.JobID = jobID.String
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

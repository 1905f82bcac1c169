package sqlc

import (
	"context"
	"database/sql"
	"time"

	"reelclip/internal/models"
)

const jobColumns = `id, upload_id, type, state, attempts, max_attempts, last_error, next_run_at, lease_until, created_at, started_at, completed_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (models.Job, error) {
	var i models.Job
	var (
		lastError   sql.NullString
		nextRunAt   int64
		leaseUntil  sql.NullInt64
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&i.ID,
		&i.UploadID,
		&i.Type,
		&i.State,
		&i.Attempts,
		&i.MaxAttempts,
		&lastError,
		&nextRunAt,
		&leaseUntil,
		&i.CreatedAt,
		&startedAt,
		&completedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		return i, err
	}
	i.LastError = lastError.String
	i.NextRunAt = fromMillis(nextRunAt)
	if leaseUntil.Valid {
		t := fromMillis(leaseUntil.Int64)
		i.LeaseUntil = &t
	}
	i.StartedAt = timePtr(startedAt)
	i.CompletedAt = timePtr(completedAt)
	return i, nil
}

const createJob = `-- name: CreateJob :exec
INSERT INTO jobs (id, upload_id, type, state, attempts, max_attempts, next_run_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateJob(ctx context.Context, arg models.Job) error {
	_, err := q.db.ExecContext(ctx, createJob,
		arg.ID,
		arg.UploadID,
		arg.Type,
		arg.State,
		arg.Attempts,
		arg.MaxAttempts,
		toMillis(arg.NextRunAt),
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getJobByID = `-- name: GetJobByID :one
SELECT ` + jobColumns + `
FROM jobs
WHERE id = ?
`

func (q *Queries) GetJobByID(ctx context.Context, id string) (models.Job, error) {
	return scanJob(q.db.QueryRowContext(ctx, getJobByID, id))
}

const getJobByUploadID = `-- name: GetJobByUploadID :one
SELECT ` + jobColumns + `
FROM jobs
WHERE upload_id = ?
`

func (q *Queries) GetJobByUploadID(ctx context.Context, uploadID string) (models.Job, error) {
	return scanJob(q.db.QueryRowContext(ctx, getJobByUploadID, uploadID))
}

const nextClaimableJob = `-- name: NextClaimableJob :one
SELECT ` + jobColumns + `
FROM jobs
WHERE (state = 'queued' AND next_run_at <= ?1)
   OR (state = 'active' AND lease_until < ?1)
ORDER BY next_run_at ASC, created_at ASC
LIMIT 1
`

// NextClaimableJob returns the oldest job that is due, or whose lease has expired.
func (q *Queries) NextClaimableJob(ctx context.Context, now time.Time) (models.Job, error) {
	return scanJob(q.db.QueryRowContext(ctx, nextClaimableJob, toMillis(now)))
}

type ClaimJobParams struct {
	ID         string
	FromState  string
	Attempts   int
	LeaseUntil time.Time
	Now        time.Time
}

const claimJob = `-- name: ClaimJob :execrows
UPDATE jobs
SET state = 'active',
    attempts = attempts + 1,
    lease_until = ?,
    started_at = COALESCE(started_at, ?),
    updated_at = ?
WHERE id = ? AND state = ? AND attempts = ?
`

func (q *Queries) ClaimJob(ctx context.Context, arg ClaimJobParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, claimJob,
		toMillis(arg.LeaseUntil),
		arg.Now,
		arg.Now,
		arg.ID,
		arg.FromState,
		arg.Attempts,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type RenewLeaseParams struct {
	ID         string
	Attempts   int
	LeaseUntil time.Time
	Now        time.Time
}

const renewLease = `-- name: RenewLease :execrows
UPDATE jobs
SET lease_until = ?, updated_at = ?
WHERE id = ? AND state = 'active' AND attempts = ?
`

func (q *Queries) RenewLease(ctx context.Context, arg RenewLeaseParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, renewLease,
		toMillis(arg.LeaseUntil),
		arg.Now,
		arg.ID,
		arg.Attempts,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type FinishJobParams struct {
	ID        string
	Attempts  int
	LastError string
	Now       time.Time
}

const completeJob = `-- name: CompleteJob :execrows
UPDATE jobs
SET state = 'completed', lease_until = NULL, completed_at = ?, updated_at = ?
WHERE id = ? AND state = 'active' AND attempts = ?
`

func (q *Queries) CompleteJob(ctx context.Context, arg FinishJobParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, completeJob,
		arg.Now,
		arg.Now,
		arg.ID,
		arg.Attempts,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const failJob = `-- name: FailJob :execrows
UPDATE jobs
SET state = 'failed', last_error = ?, lease_until = NULL, completed_at = ?, updated_at = ?
WHERE id = ? AND state = 'active' AND attempts = ?
`

func (q *Queries) FailJob(ctx context.Context, arg FinishJobParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, failJob,
		nullString(arg.LastError),
		arg.Now,
		arg.Now,
		arg.ID,
		arg.Attempts,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type RetryJobParams struct {
	ID        string
	Attempts  int
	LastError string
	NextRunAt time.Time
	Now       time.Time
}

const retryJob = `-- name: RetryJob :execrows
UPDATE jobs
SET state = 'queued', last_error = ?, next_run_at = ?, lease_until = NULL, updated_at = ?
WHERE id = ? AND state = 'active' AND attempts = ?
`

func (q *Queries) RetryJob(ctx context.Context, arg RetryJobParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, retryJob,
		nullString(arg.LastError),
		toMillis(arg.NextRunAt),
		arg.Now,
		arg.ID,
		arg.Attempts,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const releaseJob = `-- name: ReleaseJob :execrows
UPDATE jobs
SET state = 'queued', attempts = attempts - 1, next_run_at = ?, lease_until = NULL, updated_at = ?
WHERE id = ? AND state = 'active' AND attempts = ?
`

// ReleaseJob hands an active job back without counting the attempt.
func (q *Queries) ReleaseJob(ctx context.Context, arg FinishJobParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, releaseJob,
		toMillis(arg.Now),
		arg.Now,
		arg.ID,
		arg.Attempts,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const cancelJob = `-- name: CancelJob :execrows
UPDATE jobs
SET state = 'cancelled', lease_until = NULL, completed_at = ?, updated_at = ?
WHERE id = ? AND state IN (SELECT value FROM json_each(?))
`

// CancelJob moves the job to cancelled if it is currently in one of from.
func (q *Queries) CancelJob(ctx context.Context, id string, from []string, now time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, cancelJob,
		now,
		now,
		id,
		statusSet(from),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listRecentJobs = `-- name: ListRecentJobs :many
SELECT ` + jobColumns + `
FROM jobs
ORDER BY created_at DESC
LIMIT ?
`

func (q *Queries) ListRecentJobs(ctx context.Context, limit int64) ([]models.Job, error) {
	return q.listJobs(ctx, listRecentJobs, limit)
}

const listJobsByState = `-- name: ListJobsByState :many
SELECT ` + jobColumns + `
FROM jobs
WHERE state = ?
ORDER BY created_at DESC
LIMIT ?
`

func (q *Queries) ListJobsByState(ctx context.Context, state string, limit int64) ([]models.Job, error) {
	return q.listJobs(ctx, listJobsByState, state, limit)
}

func (q *Queries) listJobs(ctx context.Context, query string, args ...interface{}) ([]models.Job, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.Job
	for rows.Next() {
		i, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
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

type CountJobsByStateRow struct {
	State string
	Count int64
}

const countJobsByState = `-- name: CountJobsByState :many
SELECT state, COUNT(*) FROM jobs GROUP BY state
`

func (q *Queries) CountJobsByState(ctx context.Context) ([]CountJobsByStateRow, error) {
	rows, err := q.db.QueryContext(ctx, countJobsByState)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountJobsByStateRow
	for rows.Next() {
		var i CountJobsByStateRow
		if err := rows.Scan(&i.State, &i.Count); err != nil {
			return nil, err
		}
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

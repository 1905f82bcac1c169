package sqlc

import (
	"context"
	"database/sql"

	"reelclip/internal/models"
)

const createProject = `-- name: CreateProject :exec
INSERT INTO projects (id, owner_id, title, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateProject(ctx context.Context, arg models.Project) error {
	_, err := q.db.ExecContext(ctx, createProject,
		arg.ID,
		arg.OwnerID,
		arg.Title,
		arg.Status,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getProjectByID = `-- name: GetProjectByID :one
SELECT id, owner_id, title, status, created_at, updated_at
FROM projects
WHERE id = ?
`

func (q *Queries) GetProjectByID(ctx context.Context, id string) (models.Project, error) {
	row := q.db.QueryRowContext(ctx, getProjectByID, id)
	var i models.Project
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.Title,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const transitionProject = `-- name: TransitionProject :execrows
UPDATE projects
SET status = ?, updated_at = ?
WHERE id = ? AND status IN (SELECT value FROM json_each(?))
`

func (q *Queries) TransitionProject(ctx context.Context, arg StatusTransitionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, transitionProject,
		arg.To,
		arg.UpdatedAt,
		arg.ID,
		statusSet(arg.From),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listProjectsByOwner = `-- name: ListProjectsByOwner :many
SELECT id, owner_id, title, status, created_at, updated_at
FROM projects
WHERE owner_id = ?
ORDER BY created_at DESC
LIMIT ?
`

func (q *Queries) ListProjectsByOwner(ctx context.Context, ownerID string, limit int64) ([]models.Project, error) {
	rows, err := q.db.QueryContext(ctx, listProjectsByOwner, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.Project
	for rows.Next() {
		var i models.Project
		if err := rows.Scan(
			&i.ID,
			&i.OwnerID,
			&i.Title,
			&i.Status,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
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

const createUpload = `-- name: CreateUpload :exec
INSERT INTO uploads (id, project_id, source, kind, status, failure_reason, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateUpload(ctx context.Context, arg models.Upload) error {
	_, err := q.db.ExecContext(ctx, createUpload,
		arg.ID,
		arg.ProjectID,
		arg.Source,
		arg.Kind,
		arg.Status,
		nullString(arg.FailureReason),
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getUploadByID = `-- name: GetUploadByID :one
SELECT id, project_id, source, kind, status, failure_reason, created_at, updated_at
FROM uploads
WHERE id = ?
`

func (q *Queries) GetUploadByID(ctx context.Context, id string) (models.Upload, error) {
	row := q.db.QueryRowContext(ctx, getUploadByID, id)
	var i models.Upload
	var reason sql.NullString
	err := row.Scan(
		&i.ID,
		&i.ProjectID,
		&i.Source,
		&i.Kind,
		&i.Status,
		&reason,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	i.FailureReason = reason.String
	return i, err
}

// UploadTransitionParams is StatusTransitionParams plus an optional failure reason.
type UploadTransitionParams struct {
	StatusTransitionParams
	FailureReason string
}

const transitionUpload = `-- name: TransitionUpload :execrows
UPDATE uploads
SET status = ?, failure_reason = COALESCE(?, failure_reason), updated_at = ?
WHERE id = ? AND status IN (SELECT value FROM json_each(?))
`

func (q *Queries) TransitionUpload(ctx context.Context, arg UploadTransitionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, transitionUpload,
		arg.To,
		nullString(arg.FailureReason),
		arg.UpdatedAt,
		arg.ID,
		statusSet(arg.From),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

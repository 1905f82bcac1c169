package sqlc

import (
	"context"
	"database/sql"
	"encoding/json"

	"reelclip/internal/models"
)

const createTranscript = `-- name: CreateTranscript :exec
INSERT INTO transcripts (id, upload_id, language, confidence, text_ref, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateTranscript(ctx context.Context, arg models.Transcript) error {
	_, err := q.db.ExecContext(ctx, createTranscript,
		arg.ID,
		arg.UploadID,
		arg.Language,
		arg.Confidence,
		arg.TextRef,
		arg.CreatedAt,
	)
	return err
}

const getTranscriptByUploadID = `-- name: GetTranscriptByUploadID :one
SELECT id, upload_id, language, confidence, text_ref, created_at
FROM transcripts
WHERE upload_id = ?
`

func (q *Queries) GetTranscriptByUploadID(ctx context.Context, uploadID string) (models.Transcript, error) {
	row := q.db.QueryRowContext(ctx, getTranscriptByUploadID, uploadID)
	var i models.Transcript
	err := row.Scan(
		&i.ID,
		&i.UploadID,
		&i.Language,
		&i.Confidence,
		&i.TextRef,
		&i.CreatedAt,
	)
	return i, err
}

const createSegment = `-- name: CreateSegment :exec
INSERT INTO segments (id, upload_id, start_s, end_s, score, reason_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateSegment(ctx context.Context, arg models.Segment) error {
	var reason sql.NullString
	if len(arg.Reason) > 0 {
		reason = sql.NullString{String: string(arg.Reason), Valid: true}
	}
	_, err := q.db.ExecContext(ctx, createSegment,
		arg.ID,
		arg.UploadID,
		arg.StartS,
		arg.EndS,
		arg.Score,
		reason,
		arg.CreatedAt,
	)
	return err
}

const listSegmentsByUpload = `-- name: ListSegmentsByUpload :many
SELECT id, upload_id, start_s, end_s, score, reason_json, created_at
FROM segments
WHERE upload_id = ?
ORDER BY start_s ASC, end_s ASC, id ASC
`

func (q *Queries) ListSegmentsByUpload(ctx context.Context, uploadID string) ([]models.Segment, error) {
	rows, err := q.db.QueryContext(ctx, listSegmentsByUpload, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.Segment
	for rows.Next() {
		var i models.Segment
		var reason sql.NullString
		if err := rows.Scan(
			&i.ID,
			&i.UploadID,
			&i.StartS,
			&i.EndS,
			&i.Score,
			&reason,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		if reason.Valid {
			i.Reason = json.RawMessage(reason.String)
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

const createClip = `-- name: CreateClip :exec
INSERT INTO clips (id, project_id, upload_id, segment_id, rank, title, start_s, end_s, score, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateClip(ctx context.Context, arg models.Clip) error {
	_, err := q.db.ExecContext(ctx, createClip,
		arg.ID,
		arg.ProjectID,
		arg.UploadID,
		arg.SegmentID,
		arg.Rank,
		arg.Title,
		arg.StartS,
		arg.EndS,
		arg.Score,
		arg.Status,
		arg.CreatedAt,
	)
	return err
}

const listClipsByProject = `-- name: ListClipsByProject :many
SELECT id, project_id, upload_id, segment_id, rank, title, start_s, end_s, score, status, created_at
FROM clips
WHERE project_id = ?
ORDER BY rank ASC
`

func (q *Queries) ListClipsByProject(ctx context.Context, projectID string) ([]models.Clip, error) {
	rows, err := q.db.QueryContext(ctx, listClipsByProject, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.Clip
	for rows.Next() {
		var i models.Clip
		if err := rows.Scan(
			&i.ID,
			&i.ProjectID,
			&i.UploadID,
			&i.SegmentID,
			&i.Rank,
			&i.Title,
			&i.StartS,
			&i.EndS,
			&i.Score,
			&i.Status,
			&i.CreatedAt,
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

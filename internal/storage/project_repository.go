package storage

import (
	"context"
	"database/sql"

	"reelclip/internal/models"
)

// ProjectRepository はプロジェクトとアップロードの参照用データアクセス層
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository は新しいProjectRepositoryを作成
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// GetByID はIDでプロジェクトを取得
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	project, err := r.db.Queries.GetProjectByID(ctx, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// ListByOwner は所有者のプロジェクト一覧を取得
func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]models.Project, error) {
	if limit == 0 {
		limit = 20
	}
	return r.db.Queries.ListProjectsByOwner(ctx, ownerID, int64(limit))
}

// GetUpload はIDでアップロードを取得
func (r *ProjectRepository) GetUpload(ctx context.Context, id string) (*models.Upload, error) {
	upload, err := r.db.Queries.GetUploadByID(ctx, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// ResultRepository は解析結果（文字起こし・セグメント・クリップ）のデータアクセス層
type ResultRepository struct {
	db *DB
}

// NewResultRepository は新しいResultRepositoryを作成
func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// GetTranscript はアップロードの文字起こしを取得
func (r *ResultRepository) GetTranscript(ctx context.Context, uploadID string) (*models.Transcript, error) {
	transcript, err := r.db.Queries.GetTranscriptByUploadID(ctx, uploadID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &transcript, nil
}

// ListSegments はアップロードのセグメント一覧を開始時刻順で取得
func (r *ResultRepository) ListSegments(ctx context.Context, uploadID string) ([]models.Segment, error) {
	return r.db.Queries.ListSegmentsByUpload(ctx, uploadID)
}

// ListClips はプロジェクトのクリップ一覧をランク順で取得
func (r *ResultRepository) ListClips(ctx context.Context, projectID string) ([]models.Clip, error) {
	return r.db.Queries.ListClipsByProject(ctx, projectID)
}

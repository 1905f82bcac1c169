package storage

import (
	"context"
	"database/sql"

	"reelclip/internal/models"
)

// JobRepository はジョブの参照用データアクセス層（状態遷移は queue パッケージが行う）
type JobRepository struct {
	db *DB
}

// NewJobRepository は新しいJobRepositoryを作成
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// GetByID はIDでジョブを取得
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	job, err := r.db.Queries.GetJobByID(ctx, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetByUploadID はアップロードIDでジョブを取得
func (r *JobRepository) GetByUploadID(ctx context.Context, uploadID string) (*models.Job, error) {
	job, err := r.db.Queries.GetJobByUploadID(ctx, uploadID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListByState は状態でジョブ一覧を取得
func (r *JobRepository) ListByState(ctx context.Context, state string, limit int) ([]models.Job, error) {
	if limit == 0 {
		limit = 50
	}
	return r.db.Queries.ListJobsByState(ctx, state, int64(limit))
}

// ListRecent は最近のジョブ一覧を取得
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]models.Job, error) {
	if limit == 0 {
		limit = 50
	}
	return r.db.Queries.ListRecentJobs(ctx, int64(limit))
}

// CountByState は状態ごとのジョブ数を取得
func (r *JobRepository) CountByState(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Queries.CountJobsByState(ctx)
	if err != nil {
		return nil, err
	}
	counts := map[string]int64{
		models.JobStateQueued:    0,
		models.JobStateActive:    0,
		models.JobStateCompleted: 0,
		models.JobStateFailed:    0,
		models.JobStateCancelled: 0,
	}
	for _, row := range rows {
		counts[row.State] = row.Count
	}
	return counts, nil
}

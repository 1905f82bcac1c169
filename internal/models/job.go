package models

import "time"

// Job はアップロード1件に対する非同期解析タスク
type Job struct {
	ID          string     `json:"id"`
	UploadID    string     `json:"upload_id"`
	Type        string     `json:"type"`
	State       string     `json:"state"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   string     `json:"last_error,omitempty"`
	NextRunAt   time.Time  `json:"next_run_at"`
	LeaseUntil  *time.Time `json:"lease_until,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ジョブタイプ
const (
	JobTypeAnalyze = "analyze"
)

// ジョブステータス
const (
	JobStateQueued    = "queued"
	JobStateActive    = "active"
	JobStateCompleted = "completed"
	JobStateFailed    = "failed" // デッドレター（自動リトライなし）
	JobStateCancelled = "cancelled"
)

// IsTerminal はジョブが終端状態かどうかを返す
func (j *Job) IsTerminal() bool {
	return IsTerminalJobState(j.State)
}

// IsTerminalJobState は状態が終端かどうかを返す
func IsTerminalJobState(state string) bool {
	switch state {
	case JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}

package models

import "time"

// Project はユーザーが作成したクリップ生成プロジェクト
type Project struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// プロジェクトステータス
const (
	ProjectStatusCreated    = "created"
	ProjectStatusProcessing = "processing"
	ProjectStatusCompleted  = "completed"
	ProjectStatusFailed     = "failed"
	ProjectStatusCancelled  = "cancelled"
)

// Upload は入力された元動画の参照
type Upload struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Source        string    `json:"source"`
	Kind          string    `json:"kind"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ソース種別
const (
	SourceKindFile      = "file"
	SourceKindRemoteURL = "remote_url"
)

// アップロードステータス（クライアントに見える状態と同じ語彙）
const (
	UploadStatusQueued     = "queued"
	UploadStatusProcessing = "processing"
	UploadStatusCompleted  = "completed"
	UploadStatusFailed     = "failed"
	UploadStatusCancelled  = "cancelled"
)

// IsTerminalUploadStatus はアップロード状態が終端かどうかを返す
func IsTerminalUploadStatus(status string) bool {
	switch status {
	case UploadStatusCompleted, UploadStatusFailed, UploadStatusCancelled:
		return true
	default:
		return false
	}
}

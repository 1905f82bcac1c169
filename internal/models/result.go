package models

import (
	"encoding/json"
	"time"
)

// Transcript は解析サービスが返した文字起こしのメタ情報（本文はストレージキー参照）
type Transcript struct {
	ID         string    `json:"id"`
	UploadID   string    `json:"upload_id"`
	Language   string    `json:"language"`
	Confidence float64   `json:"confidence"`
	TextRef    string    `json:"text_ref"`
	CreatedAt  time.Time `json:"created_at"`
}

// Segment はスコア付きの時間区間（秒）
type Segment struct {
	ID        string          `json:"id"`
	UploadID  string          `json:"upload_id"`
	StartS    float64         `json:"start_s"`
	EndS      float64         `json:"end_s"`
	Score     float64         `json:"score"`
	Reason    json.RawMessage `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Duration は区間の長さ（秒）
func (s Segment) Duration() float64 {
	return s.EndS - s.StartS
}

// Clip は上位セグメントから導出された出力クリップ
type Clip struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	UploadID  string    `json:"upload_id"`
	SegmentID string    `json:"segment_id"`
	Rank      int       `json:"rank"`
	Title     string    `json:"title"`
	StartS    float64   `json:"start_s"`
	EndS      float64   `json:"end_s"`
	Score     float64   `json:"score"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// クリップステータス
const (
	ClipStatusReady = "ready"
)

package models

import "time"

// LedgerEntry はクレジット残高の追記専用レコード
type LedgerEntry struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Delta     int64     `json:"delta"`
	Reason    string    `json:"reason"`
	JobID     string    `json:"job_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// 台帳エントリの理由
const (
	LedgerReasonAdmission = "Debit:Admission"
	LedgerReasonRefund    = "Credit:Refund"
	LedgerReasonGrant     = "Credit:Grant"
)

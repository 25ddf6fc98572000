package models

import "time"

// TransactionType tags a ledger entry. Amounts are always stored positive;
// the sign is implied by the type (earned_* adds, redeemed subtracts).
type TransactionType string

const (
	TransactionEarnedReport  TransactionType = "earned_report"
	TransactionEarnedCollect TransactionType = "earned_collect"
	TransactionRedeemed      TransactionType = "redeemed"
)

// Earns reports whether the type credits points.
func (t TransactionType) Earns() bool {
	return t == TransactionEarnedReport || t == TransactionEarnedCollect
}

// Transaction is an immutable point-affecting ledger entry. Append-only:
// never updated or deleted. The ledger is the sole source of truth for
// balance; nothing else may hold a mutable point counter.
type Transaction struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string          `gorm:"type:uuid;index;not null" json:"user_id"`
	Type        TransactionType `gorm:"type:varchar(16);not null;uniqueIndex:idx_tx_report_type" json:"type"`
	Amount      int64           `gorm:"not null" json:"amount"` // always positive
	Description string          `json:"description"`

	// ReportID links earn entries to the report that produced them; nil for
	// redemptions. The composite unique index keeps a report's grant of each
	// kind exactly-once (NULLs do not collide under Postgres semantics).
	ReportID *string `gorm:"type:uuid;uniqueIndex:idx_tx_report_type" json:"report_id,omitempty"`

	CreatedAt time.Time `json:"date" gorm:"autoCreateTime;index"`
}

package models

import "time"

// CollectedWaste is the durable proof of a verified collection, one per
// report that reaches 'verified'. Never mutated or deleted. The uniqueIndex
// on ReportID is what enforces exactly-once at the storage layer.
type CollectedWaste struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	ReportID    string `gorm:"type:uuid;uniqueIndex;not null" json:"report_id"`
	CollectorID string `gorm:"type:uuid;index;not null" json:"collector_id"`

	CollectionDate time.Time `json:"collection_date" gorm:"not null"`
	Status         string    `gorm:"type:varchar(16);not null;default:'verified'" json:"status"`

	// Oracle judgment that accepted the collection, kept for audit.
	VerificationResult string `gorm:"type:jsonb" json:"verification_result,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

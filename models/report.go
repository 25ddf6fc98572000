package models

import "time"

// ReportStatus is the lifecycle state of a waste report as it moves
// through collection.
type ReportStatus string

const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusInProgress ReportStatus = "in_progress"
	ReportStatusCompleted  ReportStatus = "completed" // collected without verification, no reward
	ReportStatusVerified   ReportStatus = "verified"  // terminal, never regresses
)

// Report is a user-submitted claim of waste at a location, pending collection.
// Status and CollectorID are mutated only by the collection task lifecycle.
type Report struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string `gorm:"index;not null" json:"user_id"`
	Location  string `gorm:"not null" json:"location"`
	WasteType string `gorm:"not null" json:"waste_type"`
	Amount    string `gorm:"not null" json:"amount"` // free text with embedded quantity, e.g. "5 kg"
	ImageURL  string `gorm:"type:text" json:"image_url,omitempty"`

	// Opaque oracle payload captured at report time (type/quantity/confidence).
	// Stored as-is, never interpreted by the core.
	VerificationResult string `gorm:"type:jsonb" json:"verification_result,omitempty"`

	Status      ReportStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	CollectorID *string      `gorm:"type:uuid;index" json:"collector_id,omitempty"` // nil until claimed, immutable after

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

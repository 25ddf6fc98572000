package models

import "time"

// Notification is an advisory user-facing event. Delivery is at-least-once
// from the caller's perspective; ledger and task correctness never depend on
// a notification existing. Mutated only to flip IsRead.
type Notification struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID  string `gorm:"type:uuid;index;not null" json:"user_id"`
	Message string `gorm:"not null" json:"message"`
	Type    string `gorm:"type:varchar(32);not null" json:"type"` // e.g. "reward", "task"
	IsRead  bool   `gorm:"default:false;index" json:"is_read"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

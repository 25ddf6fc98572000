package models

import (
	"time"

	"gorm.io/gorm"
)

// Reward is a redeemable catalog entry. The catalog is read-only with
// respect to redemption: redeeming appends a 'redeemed' ledger transaction
// and touches nothing here. Point grants live only in the ledger, never as
// reward rows.
type Reward struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	Name           string `gorm:"not null" json:"name"`
	Slug           string `gorm:"uniqueIndex;not null" json:"slug"`
	Cost           int64  `gorm:"not null" json:"cost"` // points required to redeem
	Description    string `gorm:"type:text" json:"description"`
	CollectionInfo string `gorm:"type:text" json:"collection_info"`

	IsAvailable bool       `gorm:"default:true;index" json:"is_available"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// AvailableReward is the listing shape returned to clients. The head entry
// ("Your Points") is synthetic and computed from the caller's live balance.
type AvailableReward struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Cost           int64  `json:"cost"`
	Description    string `json:"description"`
	CollectionInfo string `json:"collection_info"`
}

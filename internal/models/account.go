package models

import (
	"time"
)

// Account is the per-user rewards ledger record. It is keyed by the
// platform-assigned user id, which is immutable and unique.
type Account struct {
	UserID       int64      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Points       int64      `gorm:"not null;default:0" json:"points"`
	LastClaim    *time.Time `json:"last_claim,omitempty"`
	ReferredBy   *int64     `gorm:"index" json:"referred_by,omitempty"`
	ReminderSent bool       `gorm:"not null;default:false" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Account model
func (Account) TableName() string {
	return "accounts"
}

// internal/models/reputation.go
package models

import "github.com/google/uuid"

// UserReputation keeps per-user trust counters. Rows are created lazily,
// updated only by dispute resolution and sale completion, and never
// deleted.
type UserReputation struct {
	BaseModel
	UserID             uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex"`
	TrustScore         int       `json:"trust_score" gorm:"default:100"`
	DisputesOpened     int       `json:"disputes_opened" gorm:"default:0"`
	DisputesWon        int       `json:"disputes_won" gorm:"default:0"`
	DisputesLost       int       `json:"disputes_lost" gorm:"default:0"`
	CompletedSales     int       `json:"completed_sales" gorm:"default:0"`
	CompletedPurchases int       `json:"completed_purchases" gorm:"default:0"`
	IsSuspicious       bool      `json:"is_suspicious" gorm:"default:false;index"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// internal/models/dispute.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute is 1:1 with a Transaction in a disputable state. At most one
// dispute in open/under_review may exist per transaction.
type Dispute struct {
	BaseModel
	TransactionID uuid.UUID     `json:"transaction_id" gorm:"type:uuid;not null;index"`
	OpenedByID    uuid.UUID     `json:"opened_by_id" gorm:"type:uuid;not null;index"`
	Reason        DisputeReason `json:"reason" gorm:"type:varchar(30);not null"`
	Description   string        `json:"description" gorm:"type:text;not null"`
	Status        DisputeStatus `json:"status" gorm:"type:varchar(20);default:'open';index"`
	Resolution    string        `json:"resolution,omitempty" gorm:"type:text"`
	ResolvedByID  *uuid.UUID    `json:"resolved_by_id" gorm:"type:uuid"`
	ResolvedAt    *time.Time    `json:"resolved_at"`

	// Relationships
	Transaction Transaction      `json:"transaction,omitempty" gorm:"foreignKey:TransactionID"`
	OpenedBy    User             `json:"opened_by,omitempty" gorm:"foreignKey:OpenedByID"`
	Evidence    []DisputeEvidence `json:"evidence,omitempty" gorm:"foreignKey:DisputeID"`
	Messages    []DisputeMessage  `json:"messages,omitempty" gorm:"foreignKey:DisputeID"`
}

// IsOpen reports whether the dispute still blocks settlement.
func (d *Dispute) IsOpen() bool {
	return d.Status == DisputeStatusOpen || d.Status == DisputeStatusUnderReview
}

// DisputeEvidence rows are append-only; never mutated after creation.
type DisputeEvidence struct {
	BaseModel
	DisputeID   uuid.UUID `json:"dispute_id" gorm:"type:uuid;not null;index"`
	UploadedByID uuid.UUID `json:"uploaded_by_id" gorm:"type:uuid;not null"`
	FileURL     string    `json:"file_url" gorm:"size:512;not null"`
	FileName    string    `json:"file_name" gorm:"size:255"`
	Description string    `json:"description" gorm:"type:text"`

	UploadedBy User `json:"uploaded_by,omitempty" gorm:"foreignKey:UploadedByID"`
}

// DisputeMessage rows are append-only. System-authored messages record
// admin decisions (SenderID nil, IsSystem true).
type DisputeMessage struct {
	BaseModel
	DisputeID uuid.UUID  `json:"dispute_id" gorm:"type:uuid;not null;index"`
	SenderID  *uuid.UUID `json:"sender_id" gorm:"type:uuid"`
	IsSystem  bool       `json:"is_system" gorm:"default:false"`
	Message   string     `json:"message" gorm:"type:text;not null"`

	Sender *User `json:"sender,omitempty" gorm:"foreignKey:SenderID"`
}

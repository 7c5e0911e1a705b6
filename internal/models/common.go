// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserType string

const (
	UserTypeUser  UserType = "user"
	UserTypeAdmin UserType = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type VerificationLevel string

const (
	VerificationLevelUnverified VerificationLevel = "unverified"
	VerificationLevelVerified   VerificationLevel = "verified"
)

type TicketStatus string

const (
	TicketStatusAvailable TicketStatus = "available"
	TicketStatusReserved  TicketStatus = "reserved"
	TicketStatusSold      TicketStatus = "sold"
	TicketStatusCompleted TicketStatus = "completed"
	TicketStatusCancelled TicketStatus = "cancelled"
)

type TransactionStatus string

const (
	TransactionStatusPending        TransactionStatus = "pending"
	TransactionStatusPaid           TransactionStatus = "paid"
	TransactionStatusConfirmed      TransactionStatus = "confirmed"
	TransactionStatusDisputed       TransactionStatus = "disputed"
	TransactionStatusReleased       TransactionStatus = "released"
	TransactionStatusRefunded       TransactionStatus = "refunded"
	TransactionStatusCancelled      TransactionStatus = "cancelled"
	TransactionStatusExpired        TransactionStatus = "expired"
	TransactionStatusSellerRejected TransactionStatus = "seller_rejected"
)

// IsTerminal reports whether no further transition is defined from s.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusReleased, TransactionStatusRefunded,
		TransactionStatusCancelled, TransactionStatusExpired,
		TransactionStatusSellerRejected:
		return true
	}
	return false
}

type BillingType string

const (
	BillingTypePix        BillingType = "PIX"
	BillingTypeCreditCard BillingType = "CREDIT_CARD"
)

type DisputeStatus string

const (
	DisputeStatusOpen           DisputeStatus = "open"
	DisputeStatusUnderReview    DisputeStatus = "under_review"
	DisputeStatusResolvedBuyer  DisputeStatus = "resolved_buyer"
	DisputeStatusResolvedSeller DisputeStatus = "resolved_seller"
	DisputeStatusClosed         DisputeStatus = "closed"
)

type DisputeReason string

const (
	DisputeReasonTicketInvalid  DisputeReason = "ticket_invalid"
	DisputeReasonEntryDenied    DisputeReason = "entry_denied"
	DisputeReasonEventCancelled DisputeReason = "event_cancelled"
	DisputeReasonWrongTicket    DisputeReason = "wrong_ticket"
	DisputeReasonSellerNoShow   DisputeReason = "seller_no_show"
	DisputeReasonChargeback     DisputeReason = "chargeback"
	DisputeReasonOther          DisputeReason = "other"
)

type WalletTransactionType string

const (
	WalletTransactionTypeCredit WalletTransactionType = "credit"
	WalletTransactionTypeDebit  WalletTransactionType = "debit"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
)

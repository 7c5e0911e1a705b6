// internal/models/wallet.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is 1:1 with a user. AvailableBalance is a materialized cache of
// the ledger: it must equal the BalanceAfter of the wallet's most recent
// WalletTransaction row, and is only ever written in the same atomic unit
// as appending such a row.
type Wallet struct {
	BaseModel
	UserID           uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;uniqueIndex"`
	AvailableBalance decimal.Decimal `json:"available_balance" gorm:"type:decimal(10,2);not null;default:0"`
	PendingBalance   decimal.Decimal `json:"pending_balance" gorm:"type:decimal(10,2);not null;default:0"`
	TotalWithdrawn   decimal.Decimal `json:"total_withdrawn" gorm:"type:decimal(10,2);not null;default:0"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// WalletTransaction is an append-only ledger line.
// Invariant: BalanceAfter = BalanceBefore + Amount (Amount is signed,
// negative for debits).
type WalletTransaction struct {
	BaseModel
	WalletID      uuid.UUID             `json:"wallet_id" gorm:"type:uuid;not null;index"`
	Type          WalletTransactionType `json:"type" gorm:"type:varchar(10);not null"`
	Amount        decimal.Decimal       `json:"amount" gorm:"type:decimal(10,2);not null"`
	BalanceBefore decimal.Decimal       `json:"balance_before" gorm:"type:decimal(10,2);not null"`
	BalanceAfter  decimal.Decimal       `json:"balance_after" gorm:"type:decimal(10,2);not null"`
	Description   string                `json:"description" gorm:"size:255"`
	ReferenceType string                `json:"reference_type" gorm:"size:30;index"`
	ReferenceID   *uuid.UUID            `json:"reference_id" gorm:"type:uuid;index"`
}

// Withdrawal is a payout request. The wallet is debited at request time;
// rejection re-credits through a new ledger line, never by rewriting
// history.
type Withdrawal struct {
	BaseModel
	WalletID        uuid.UUID        `json:"wallet_id" gorm:"type:uuid;not null;index"`
	UserID          uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal  `json:"amount" gorm:"type:decimal(10,2);not null"`
	PixKey          string           `json:"pix_key" gorm:"size:140;not null"`
	Status          WithdrawalStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	RejectionReason string           `json:"rejection_reason,omitempty" gorm:"type:text"`
	ProcessedByID   *uuid.UUID       `json:"processed_by_id" gorm:"type:uuid"`
	ProcessedAt     *time.Time       `json:"processed_at"`
	CompletedAt     *time.Time       `json:"completed_at"`

	Wallet Wallet `json:"wallet,omitempty" gorm:"foreignKey:WalletID"`
	User   User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

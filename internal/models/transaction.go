// internal/models/transaction.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is the escrow record for a single ticket sale.
// Invariant: Amount = PlatformFee + SellerAmount.
type Transaction struct {
	BaseModel
	TicketID     uuid.UUID         `json:"ticket_id" gorm:"type:uuid;not null;index"`
	BuyerID      uuid.UUID         `json:"buyer_id" gorm:"type:uuid;not null;index"`
	SellerID     uuid.UUID         `json:"seller_id" gorm:"type:uuid;not null;index"`
	Amount       decimal.Decimal   `json:"amount" gorm:"type:decimal(10,2);not null"`
	PlatformFee  decimal.Decimal   `json:"platform_fee" gorm:"type:decimal(10,2);not null"`
	SellerAmount decimal.Decimal   `json:"seller_amount" gorm:"type:decimal(10,2);not null"`
	BillingType  BillingType       `json:"billing_type" gorm:"type:varchar(20);default:'PIX'"`
	Status       TransactionStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`

	// Gateway linkage. PaymentID is the gateway's charge id; the gateway's
	// externalReference is always this transaction's own ID.
	PaymentID  string `json:"payment_id" gorm:"size:64;index"`
	InvoiceURL string `json:"invoice_url" gorm:"size:512"`
	PixQRCode  string `json:"pix_qr_code,omitempty" gorm:"type:text"`

	// Window deadlines and lifecycle timestamps. ExpiresAt bounds the seller
	// confirmation window first, then the buyer payment window after the
	// seller confirms. ReleaseAt is set when the buyer confirms entry.
	ExpiresAt         time.Time  `json:"expires_at" gorm:"not null;index"`
	SellerConfirmedAt *time.Time `json:"seller_confirmed_at"`
	PaidAt            *time.Time `json:"paid_at"`
	ConfirmedAt       *time.Time `json:"confirmed_at"`
	ReleaseAt         *time.Time `json:"release_at" gorm:"index"`
	ReleasedAt        *time.Time `json:"released_at"`
	RefundedAt        *time.Time `json:"refunded_at"`
	CancelReason      string     `json:"cancel_reason,omitempty" gorm:"type:text"`

	// Relationships
	Ticket  Ticket   `json:"ticket,omitempty" gorm:"foreignKey:TicketID"`
	Buyer   User     `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	Seller  User     `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	Dispute *Dispute `json:"dispute,omitempty" gorm:"foreignKey:TransactionID"`
}

// SellerConfirmed reports whether the seller accepted the reservation,
// i.e. the transaction is in the payment window rather than the
// confirmation window.
func (t *Transaction) SellerConfirmed() bool {
	return t.SellerConfirmedAt != nil
}

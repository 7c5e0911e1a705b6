// internal/gateway/gateway.go
package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUnavailable wraps network errors and 5xx responses. Callers must
// treat it as "state unknown, retry later", never as a definitive
// negative.
var ErrUnavailable = errors.New("payment gateway unavailable")

// Charge statuses as reported by the provider.
const (
	ChargeStatusPending   = "PENDING"
	ChargeStatusConfirmed = "CONFIRMED"
	ChargeStatusReceived  = "RECEIVED"
	ChargeStatusOverdue   = "OVERDUE"
	ChargeStatusRefunded  = "REFUNDED"
	ChargeStatusDeleted   = "DELETED"
)

type CustomerRequest struct {
	Name  string
	Email string
	CPF   string
	Phone string
}

type ChargeRequest struct {
	CustomerID string
	Value      decimal.Decimal
	// ExternalReference is always the transaction's own id, so local
	// state can be reconciled against the gateway without a lookup table.
	ExternalReference string
	BillingType       string
	Description       string
	DueDate           string // YYYY-MM-DD
}

type Charge struct {
	ID                string          `json:"id"`
	Status            string          `json:"status"`
	Value             decimal.Decimal `json:"value"`
	BillingType       string          `json:"billingType"`
	ExternalReference string          `json:"externalReference"`
	InvoiceURL        string          `json:"invoiceUrl"`
	PaymentDate       string          `json:"paymentDate"`
}

// Gateway abstracts the external payment provider. Every call may fail
// with ErrUnavailable independently of any local database write.
type Gateway interface {
	// CreateOrFindCustomer looks the customer up by tax id and creates
	// it when absent, returning the provider's customer id.
	CreateOrFindCustomer(ctx context.Context, req CustomerRequest) (string, error)

	// CreateCharge issues a PIX or card charge for the given customer.
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)

	// GetChargeByReference queries by externalReference. A nil Charge
	// with nil error means the gateway has no record for the reference.
	GetChargeByReference(ctx context.Context, reference string) (*Charge, error)

	// GetPixQRCode fetches the copy-and-paste PIX payload for a charge.
	GetPixQRCode(ctx context.Context, chargeID string) (string, error)

	// Refund refunds a charge, fully when amount is nil.
	Refund(ctx context.Context, chargeID string, amount *decimal.Decimal) error
}

// IsPaidStatus reports whether a gateway charge status means the money
// arrived (card authorization confirmed or PIX received).
func IsPaidStatus(status string) bool {
	return status == ChargeStatusConfirmed || status == ChargeStatusReceived
}

// internal/services/payment_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/repasso/repasso-backend/internal/config"
	"github.com/repasso/repasso-backend/internal/gateway"
	"github.com/repasso/repasso-backend/internal/models"
	"github.com/repasso/repasso-backend/internal/monitoring"
)

// Webhook event names pushed by the gateway.
const (
	EventPaymentCreated             = "PAYMENT_CREATED"
	EventPaymentUpdated             = "PAYMENT_UPDATED"
	EventPaymentConfirmed           = "PAYMENT_CONFIRMED"
	EventPaymentReceived            = "PAYMENT_RECEIVED"
	EventPaymentOverdue             = "PAYMENT_OVERDUE"
	EventPaymentDeleted             = "PAYMENT_DELETED"
	EventPaymentRefunded            = "PAYMENT_REFUNDED"
	EventPaymentPartiallyRefunded   = "PAYMENT_PARTIALLY_REFUNDED"
	EventChargebackRequested        = "PAYMENT_CHARGEBACK_REQUESTED"
	EventChargebackDispute          = "PAYMENT_CHARGEBACK_DISPUTE"
	EventAwaitingChargebackReversal = "PAYMENT_AWAITING_CHARGEBACK_REVERSAL"
)

// WebhookEvent is the gateway's push payload. ExternalReference always
// carries the transaction id the charge was created with.
type WebhookEvent struct {
	Event   string         `json:"event"`
	Payment WebhookPayment `json:"payment"`
}

type WebhookPayment struct {
	ID                string          `json:"id"`
	Value             decimal.Decimal `json:"value"`
	Status            string          `json:"status"`
	BillingType       string          `json:"billingType"`
	ExternalReference string          `json:"externalReference"`
	PaymentDate       string          `json:"paymentDate"`
}

// PaymentService is the webhook ingress: it maps gateway events onto
// state-machine transitions. Every branch goes through the conditional
// transition primitive, so out-of-order and duplicate deliveries are
// harmless no-ops.
type PaymentService struct {
	db           *gorm.DB
	config       *config.Config
	gateway      gateway.Gateway
	transactions *TransactionService
}

func NewPaymentService(db *gorm.DB, cfg *config.Config, gw gateway.Gateway, transactions *TransactionService) *PaymentService {
	return &PaymentService{
		db:           db,
		config:       cfg,
		gateway:      gw,
		transactions: transactions,
	}
}

// ProcessWebhookEvent applies one gateway event. Errors are returned
// for logging only; the HTTP handler acknowledges the gateway
// regardless, to avoid retry storms.
func (s *PaymentService) ProcessWebhookEvent(event *WebhookEvent) error {
	txnID, err := uuid.Parse(event.Payment.ExternalReference)
	if err != nil {
		monitoring.TrackWebhookEvent(event.Event, "bad_reference")
		return fmt.Errorf("webhook external reference %q is not a transaction id: %w", event.Payment.ExternalReference, err)
	}

	log := logrus.WithFields(logrus.Fields{
		"event":          event.Event,
		"payment_id":     event.Payment.ID,
		"transaction_id": txnID,
	})

	var applied bool
	switch event.Event {
	case EventPaymentConfirmed, EventPaymentReceived:
		applied, err = s.transactions.MarkPaid(txnID, event.Payment.ID, "webhook")

	case EventPaymentOverdue:
		applied, err = s.transactions.ExpirePayment(txnID)

	case EventPaymentDeleted:
		applied, err = s.transactions.CancelFromGateway(txnID)

	case EventPaymentRefunded, EventPaymentPartiallyRefunded:
		applied, err = s.transactions.MarkRefunded(txnID, "webhook")

	case EventChargebackRequested:
		applied, err = s.transactions.MarkChargeback(txnID)

	case EventPaymentCreated, EventPaymentUpdated,
		EventChargebackDispute, EventAwaitingChargebackReversal:
		// Informational; no local transition.
		log.Debug("Webhook event acknowledged without transition")
		monitoring.TrackWebhookEvent(event.Event, "ignored")
		return nil

	default:
		log.Warn("Unknown webhook event")
		monitoring.TrackWebhookEvent(event.Event, "unknown")
		return nil
	}

	if err != nil {
		monitoring.TrackWebhookEvent(event.Event, "error")
		return err
	}
	if applied {
		monitoring.TrackWebhookEvent(event.Event, "applied")
		log.Info("Webhook event applied")
	} else {
		// Pre-state mismatch: duplicate delivery or a concurrent writer
		// got there first. Success by contract.
		monitoring.TrackWebhookEvent(event.Event, "noop")
		log.Info("Webhook event was a no-op")
	}
	return nil
}

// RequestRefund asks the gateway to refund a charge. Failures are
// retryable: the authoritative refund signal comes back through the
// webhook or the reconciliation sweep.
func (s *PaymentService) RequestRefund(ctx context.Context, txn *models.Transaction) error {
	if txn.PaymentID == "" {
		return fmt.Errorf("transaction %s has no gateway charge to refund", txn.ID)
	}
	if err := s.gateway.Refund(ctx, txn.PaymentID, nil); err != nil {
		return fmt.Errorf("gateway refund failed: %w", err)
	}
	return nil
}

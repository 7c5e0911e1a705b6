// internal/services/payment_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repasso/repasso-backend/internal/models"
)

func webhookEvent(eventName, paymentID, reference string) *WebhookEvent {
	return &WebhookEvent{
		Event: eventName,
		Payment: WebhookPayment{
			ID:                paymentID,
			Status:            "CONFIRMED",
			BillingType:       "PIX",
			ExternalReference: reference,
		},
	}
}

// confirmedReservation returns a pending transaction sitting in the
// payment window, with a gateway charge attached.
func confirmedReservation(t *testing.T, env *testEnv) (*models.Transaction, *models.User, *models.User) {
	t.Helper()
	buyer := env.createUser(t, "webhook-comprador")
	seller := env.createUser(t, "webhook-vendedor")
	ticket := env.createTicket(t, seller, "150.00")

	txn, err := env.transactions.Reserve(buyer.ID, ticket.ID, models.BillingTypePix)
	require.NoError(t, err)
	txn, err = env.transactions.SellerConfirm(context.Background(), seller.ID, txn.ID)
	require.NoError(t, err)
	return txn, buyer, seller
}

func TestWebhookPaymentConfirmed(t *testing.T) {
	env := newTestEnv(t)
	txn, _, _ := confirmedReservation(t, env)

	err := env.payments.ProcessWebhookEvent(webhookEvent(EventPaymentConfirmed, txn.PaymentID, txn.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPaid, env.reloadTransaction(t, txn.ID).Status)

	// The gateway redelivers; nothing changes and nothing fails.
	err = env.payments.ProcessWebhookEvent(webhookEvent(EventPaymentConfirmed, txn.PaymentID, txn.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPaid, env.reloadTransaction(t, txn.ID).Status)
}

func TestWebhookPaymentReceived(t *testing.T) {
	env := newTestEnv(t)
	txn, _, _ := confirmedReservation(t, env)

	err := env.payments.ProcessWebhookEvent(webhookEvent(EventPaymentReceived, txn.PaymentID, txn.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPaid, env.reloadTransaction(t, txn.ID).Status)
}

func TestWebhookPaymentOverdue(t *testing.T) {
	env := newTestEnv(t)
	txn, _, _ := confirmedReservation(t, env)

	err := env.payments.ProcessWebhookEvent(webhookEvent(EventPaymentOverdue, txn.PaymentID, txn.ID.String()))
	require.NoError(t, err)

	reloaded := env.reloadTransaction(t, txn.ID)
	assert.Equal(t, models.TransactionStatusExpired, reloaded.Status)
	assert.Equal(t, models.TicketStatusAvailable, env.reloadTicket(t, txn.TicketID).Status)
}

func TestWebhookPaymentRefunded(t *testing.T) {
	env := newTestEnv(t)
	txn, _, _ := confirmedReservation(t, env)
	_, err := env.transactions.MarkPaid(txn.ID, txn.PaymentID, "webhook")
	require.NoError(t, err)

	err = env.payments.ProcessWebhookEvent(webhookEvent(EventPaymentRefunded, txn.PaymentID, txn.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusRefunded, env.reloadTransaction(t, txn.ID).Status)
}

func TestWebhookChargebackRequested(t *testing.T) {
	env := newTestEnv(t)
	txn, _, _ := confirmedReservation(t, env)
	_, err := env.transactions.MarkPaid(txn.ID, txn.PaymentID, "webhook")
	require.NoError(t, err)

	err = env.payments.ProcessWebhookEvent(webhookEvent(EventChargebackRequested, txn.PaymentID, txn.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusDisputed, env.reloadTransaction(t, txn.ID).Status)

	var dispute models.Dispute
	require.NoError(t, env.db.First(&dispute, "transaction_id = ?", txn.ID).Error)
	assert.Equal(t, models.DisputeReasonChargeback, dispute.Reason)
}

func TestWebhookInformationalEventsIgnored(t *testing.T) {
	env := newTestEnv(t)
	txn, _, _ := confirmedReservation(t, env)

	for _, eventName := range []string{EventPaymentCreated, EventPaymentUpdated, EventChargebackDispute} {
		err := env.payments.ProcessWebhookEvent(webhookEvent(eventName, txn.PaymentID, txn.ID.String()))
		require.NoError(t, err)
	}
	assert.Equal(t, models.TransactionStatusPending, env.reloadTransaction(t, txn.ID).Status)
}

func TestWebhookUnknownEventAcknowledged(t *testing.T) {
	env := newTestEnv(t)
	txn, _, _ := confirmedReservation(t, env)

	err := env.payments.ProcessWebhookEvent(webhookEvent("PAYMENT_SOMETHING_NEW", txn.PaymentID, txn.ID.String()))
	assert.NoError(t, err)
}

func TestWebhookBadReference(t *testing.T) {
	env := newTestEnv(t)

	err := env.payments.ProcessWebhookEvent(webhookEvent(EventPaymentConfirmed, "pay_x", "not-a-uuid"))
	assert.Error(t, err)
}

func TestWebhookOutOfOrderReleaseThenRefund(t *testing.T) {
	// A refund event arriving after the funds were already released is a
	// no-op: released is terminal.
	env := newTestEnv(t)
	txn, buyer, _ := confirmedReservation(t, env)
	_, err := env.transactions.MarkPaid(txn.ID, txn.PaymentID, "webhook")
	require.NoError(t, err)
	_, err = env.transactions.BuyerConfirmEntry(buyer.ID, txn.ID)
	require.NoError(t, err)
	_, err = env.transactions.Release(txn.ID)
	require.NoError(t, err)

	err = env.payments.ProcessWebhookEvent(webhookEvent(EventPaymentRefunded, txn.PaymentID, txn.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusReleased, env.reloadTransaction(t, txn.ID).Status)
}

func TestRequestRefundNeedsCharge(t *testing.T) {
	env := newTestEnv(t)

	err := env.payments.RequestRefund(context.Background(), &models.Transaction{})
	assert.Error(t, err)
}

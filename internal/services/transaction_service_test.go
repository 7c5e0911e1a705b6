// internal/services/transaction_service_test.go
package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/repasso/repasso-backend/internal/models"
)

type TransactionServiceSuite struct {
	suite.Suite
	env    *testEnv
	buyer  *models.User
	seller *models.User
}

func (s *TransactionServiceSuite) SetupTest() {
	s.env = newTestEnv(s.T())
	s.buyer = s.env.createUser(s.T(), "comprador")
	s.seller = s.env.createUser(s.T(), "vendedor")
}

func TestTransactionServiceSuite(t *testing.T) {
	suite.Run(t, new(TransactionServiceSuite))
}

func (s *TransactionServiceSuite) TestSplitAmount() {
	fee, sellerAmount := s.env.transactions.SplitAmount(dec("250.00"))
	s.Equal("25.00", fee.StringFixed(2))
	s.Equal("225.00", sellerAmount.StringFixed(2))

	// Rounding always reconstructs the original amount.
	for _, raw := range []string{"99.99", "0.01", "33.33", "1234.56"} {
		amount := dec(raw)
		fee, sellerAmount = s.env.transactions.SplitAmount(amount)
		s.True(fee.Add(sellerAmount).Equal(amount), "split of %s does not add up", raw)
	}
}

func (s *TransactionServiceSuite) TestReserve() {
	ticket := s.env.createTicket(s.T(), s.seller, "250.00")

	txn, err := s.env.transactions.Reserve(s.buyer.ID, ticket.ID, models.BillingTypePix)
	s.Require().NoError(err)

	s.Equal(models.TransactionStatusPending, txn.Status)
	s.Equal("25.00", txn.PlatformFee.StringFixed(2))
	s.Equal("225.00", txn.SellerAmount.StringFixed(2))
	s.WithinDuration(time.Now().Add(s.env.cfg.Escrow.ReservationWindow), txn.ExpiresAt, 5*time.Second)

	s.Equal(models.TicketStatusReserved, s.env.reloadTicket(s.T(), ticket.ID).Status)
}

func (s *TransactionServiceSuite) TestReserveOwnTicket() {
	ticket := s.env.createTicket(s.T(), s.seller, "100.00")

	_, err := s.env.transactions.Reserve(s.seller.ID, ticket.ID, models.BillingTypePix)
	s.ErrorIs(err, ErrOwnTicket)
}

func (s *TransactionServiceSuite) TestReserveAlreadyReserved() {
	ticket := s.env.createTicket(s.T(), s.seller, "100.00")
	other := s.env.createUser(s.T(), "segundo-comprador")

	_, err := s.env.transactions.Reserve(s.buyer.ID, ticket.ID, models.BillingTypePix)
	s.Require().NoError(err)

	_, err = s.env.transactions.Reserve(other.ID, ticket.ID, models.BillingTypePix)
	s.ErrorIs(err, ErrTicketUnavailable)
}

func (s *TransactionServiceSuite) TestSellerConfirmCreatesCharge() {
	ticket := s.env.createTicket(s.T(), s.seller, "250.00")
	txn, err := s.env.transactions.Reserve(s.buyer.ID, ticket.ID, models.BillingTypePix)
	s.Require().NoError(err)

	confirmed, err := s.env.transactions.SellerConfirm(context.Background(), s.seller.ID, txn.ID)
	s.Require().NoError(err)

	s.True(confirmed.SellerConfirmed())
	s.NotEmpty(confirmed.PaymentID)
	s.NotEmpty(confirmed.PixQRCode)
	s.WithinDuration(time.Now().Add(s.env.cfg.Escrow.PaymentWindow), confirmed.ExpiresAt, 5*time.Second)

	// The charge carries the transaction id as its external reference.
	charge := s.env.gateway.charges[txn.ID.String()]
	s.Require().NotNil(charge)
	s.True(charge.Value.Equal(txn.Amount))
}

func (s *TransactionServiceSuite) TestSellerConfirmWrongUser() {
	ticket := s.env.createTicket(s.T(), s.seller, "100.00")
	txn, err := s.env.transactions.Reserve(s.buyer.ID, ticket.ID, models.BillingTypePix)
	s.Require().NoError(err)

	_, err = s.env.transactions.SellerConfirm(context.Background(), s.buyer.ID, txn.ID)
	s.ErrorIs(err, ErrNotSeller)
}

func (s *TransactionServiceSuite) TestSellerConfirmAfterWindowExpires() {
	ticket := s.env.createTicket(s.T(), s.seller, "100.00")
	txn, err := s.env.transactions.Reserve(s.buyer.ID, ticket.ID, models.BillingTypePix)
	s.Require().NoError(err)

	s.env.setExpiresAt(s.T(), txn.ID, time.Now().Add(-time.Minute))

	_, err = s.env.transactions.SellerConfirm(context.Background(), s.seller.ID, txn.ID)
	s.ErrorIs(err, ErrReservationWindowExpired)

	s.Equal(models.TransactionStatusSellerRejected, s.env.reloadTransaction(s.T(), txn.ID).Status)
	s.Equal(models.TicketStatusAvailable, s.env.reloadTicket(s.T(), ticket.ID).Status)
}

func (s *TransactionServiceSuite) TestSellerConfirmChargeDeferred() {
	ticket := s.env.createTicket(s.T(), s.seller, "100.00")
	txn, err := s.env.transactions.Reserve(s.buyer.ID, ticket.ID, models.BillingTypePix)
	s.Require().NoError(err)

	s.env.gateway.failCharge = true
	confirmed, err := s.env.transactions.SellerConfirm(context.Background(), s.seller.ID, txn.ID)
	s.ErrorIs(err, ErrChargeUnavailable)

	// The local transition landed even though the gateway was down.
	s.Require().NotNil(confirmed)
	s.True(confirmed.SellerConfirmed())
	s.Empty(confirmed.PaymentID)

	// The buyer retries once the gateway is back.
	s.env.gateway.failCharge = false
	retried, err := s.env.transactions.RetryCharge(context.Background(), s.buyer.ID, txn.ID)
	s.Require().NoError(err)
	s.NotEmpty(retried.PaymentID)
}

func (s *TransactionServiceSuite) TestSellerReject() {
	ticket := s.env.createTicket(s.T(), s.seller, "100.00")
	txn, err := s.env.transactions.Reserve(s.buyer.ID, ticket.ID, models.BillingTypePix)
	s.Require().NoError(err)

	rejected, err := s.env.transactions.SellerReject(s.seller.ID, txn.ID, "vendi por fora")
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusSellerRejected, rejected.Status)
	s.Equal(models.TicketStatusAvailable, s.env.reloadTicket(s.T(), ticket.ID).Status)

	// Already terminal; a second attempt is refused.
	_, err = s.env.transactions.SellerReject(s.seller.ID, txn.ID, "de novo")
	s.ErrorIs(err, ErrInvalidTransactionState)
}

func (s *TransactionServiceSuite) TestMarkPaidIsIdempotent() {
	ticket := s.env.createTicket(s.T(), s.seller, "250.00")
	txn, err := s.env.transactions.Reserve(s.buyer.ID, ticket.ID, models.BillingTypePix)
	s.Require().NoError(err)
	_, err = s.env.transactions.SellerConfirm(context.Background(), s.seller.ID, txn.ID)
	s.Require().NoError(err)

	applied, err := s.env.transactions.MarkPaid(txn.ID, "pay_webhook", "webhook")
	s.Require().NoError(err)
	s.True(applied)

	paid := s.env.reloadTransaction(s.T(), txn.ID)
	s.Equal(models.TransactionStatusPaid, paid.Status)
	s.NotNil(paid.PaidAt)
	s.Equal(models.TicketStatusSold, s.env.reloadTicket(s.T(), ticket.ID).Status)

	// Duplicate delivery is a successful no-op.
	applied, err = s.env.transactions.MarkPaid(txn.ID, "pay_webhook", "webhook")
	s.Require().NoError(err)
	s.False(applied)
}

func (s *TransactionServiceSuite) TestExpirePayment() {
	ticket := s.env.createTicket(s.T(), s.seller, "100.00")
	txn, err := s.env.transactions.Reserve(s.buyer.ID, ticket.ID, models.BillingTypePix)
	s.Require().NoError(err)
	_, err = s.env.transactions.SellerConfirm(context.Background(), s.seller.ID, txn.ID)
	s.Require().NoError(err)

	applied, err := s.env.transactions.ExpirePayment(txn.ID)
	s.Require().NoError(err)
	s.True(applied)

	s.Equal(models.TransactionStatusExpired, s.env.reloadTransaction(s.T(), txn.ID).Status)
	s.Equal(models.TicketStatusAvailable, s.env.reloadTicket(s.T(), ticket.ID).Status)
}

func (s *TransactionServiceSuite) TestBuyerConfirmEntry() {
	txn := s.env.paidTransaction(s.T(), s.buyer, s.seller, "250.00")

	confirmed, err := s.env.transactions.BuyerConfirmEntry(s.buyer.ID, txn.ID)
	s.Require().NoError(err)

	s.Equal(models.TransactionStatusConfirmed, confirmed.Status)
	s.Require().NotNil(confirmed.ReleaseAt)
	s.WithinDuration(time.Now().Add(s.env.cfg.Escrow.ReleaseDelay), *confirmed.ReleaseAt, 5*time.Second)
}

func (s *TransactionServiceSuite) TestBuyerConfirmEntryRequiresPaid() {
	ticket := s.env.createTicket(s.T(), s.seller, "100.00")
	txn, err := s.env.transactions.Reserve(s.buyer.ID, ticket.ID, models.BillingTypePix)
	s.Require().NoError(err)

	_, err = s.env.transactions.BuyerConfirmEntry(s.buyer.ID, txn.ID)
	s.ErrorIs(err, ErrInvalidTransactionState)

	_, err = s.env.transactions.BuyerConfirmEntry(s.seller.ID, txn.ID)
	s.ErrorIs(err, ErrNotBuyer)
}

func (s *TransactionServiceSuite) TestReleaseCreditsSellerExactlyOnce() {
	txn := s.env.paidTransaction(s.T(), s.buyer, s.seller, "250.00")
	_, err := s.env.transactions.BuyerConfirmEntry(s.buyer.ID, txn.ID)
	s.Require().NoError(err)

	applied, err := s.env.transactions.Release(txn.ID)
	s.Require().NoError(err)
	s.True(applied)

	released := s.env.reloadTransaction(s.T(), txn.ID)
	s.Equal(models.TransactionStatusReleased, released.Status)
	s.NotNil(released.ReleasedAt)
	s.Equal(models.TicketStatusCompleted, s.env.reloadTicket(s.T(), txn.TicketID).Status)

	wallet, err := s.env.wallets.GetOrCreate(s.seller.ID)
	s.Require().NoError(err)
	s.Equal("225.00", wallet.AvailableBalance.StringFixed(2))

	sellerRep, err := s.env.reputation.Get(s.seller.ID)
	s.Require().NoError(err)
	s.Equal(1, sellerRep.CompletedSales)
	buyerRep, err := s.env.reputation.Get(s.buyer.ID)
	s.Require().NoError(err)
	s.Equal(1, buyerRep.CompletedPurchases)

	// Replaying the release must not credit the seller again.
	applied, err = s.env.transactions.Release(txn.ID)
	s.Require().NoError(err)
	s.False(applied)

	wallet, err = s.env.wallets.GetOrCreate(s.seller.ID)
	s.Require().NoError(err)
	s.Equal("225.00", wallet.AvailableBalance.StringFixed(2))

	var lines int64
	s.env.db.Model(&models.WalletTransaction{}).Where("wallet_id = ?", wallet.ID).Count(&lines)
	s.EqualValues(1, lines)
}

func (s *TransactionServiceSuite) TestRefundKeepsTicketSold() {
	txn := s.env.paidTransaction(s.T(), s.buyer, s.seller, "100.00")

	applied, err := s.env.transactions.MarkRefunded(txn.ID, "webhook")
	s.Require().NoError(err)
	s.True(applied)

	s.Equal(models.TransactionStatusRefunded, s.env.reloadTransaction(s.T(), txn.ID).Status)
	// The sale was undone with money, not inventory.
	s.Equal(models.TicketStatusSold, s.env.reloadTicket(s.T(), txn.TicketID).Status)
}

func (s *TransactionServiceSuite) TestChargebackOpensSystemDispute() {
	txn := s.env.paidTransaction(s.T(), s.buyer, s.seller, "100.00")

	applied, err := s.env.transactions.MarkChargeback(txn.ID)
	s.Require().NoError(err)
	s.True(applied)

	s.Equal(models.TransactionStatusDisputed, s.env.reloadTransaction(s.T(), txn.ID).Status)

	var dispute models.Dispute
	s.Require().NoError(s.env.db.First(&dispute, "transaction_id = ?", txn.ID).Error)
	s.Equal(models.DisputeReasonChargeback, dispute.Reason)
	s.Equal(models.DisputeStatusUnderReview, dispute.Status)
}

func (s *TransactionServiceSuite) TestCancelFromGateway() {
	ticket := s.env.createTicket(s.T(), s.seller, "100.00")
	txn, err := s.env.transactions.Reserve(s.buyer.ID, ticket.ID, models.BillingTypePix)
	s.Require().NoError(err)

	applied, err := s.env.transactions.CancelFromGateway(txn.ID)
	s.Require().NoError(err)
	s.True(applied)

	s.Equal(models.TransactionStatusCancelled, s.env.reloadTransaction(s.T(), txn.ID).Status)
	s.Equal(models.TicketStatusAvailable, s.env.reloadTicket(s.T(), ticket.ID).Status)
}

func (s *TransactionServiceSuite) TestGetForParticipant() {
	txn := s.env.paidTransaction(s.T(), s.buyer, s.seller, "100.00")
	outsider := s.env.createUser(s.T(), "curioso")

	_, err := s.env.transactions.GetForParticipant(s.buyer.ID, false, txn.ID)
	s.NoError(err)
	_, err = s.env.transactions.GetForParticipant(outsider.ID, false, txn.ID)
	s.Error(err)
	_, err = s.env.transactions.GetForParticipant(outsider.ID, true, txn.ID)
	s.NoError(err)
}

func TestTransactionStatusIsTerminal(t *testing.T) {
	terminal := []models.TransactionStatus{
		models.TransactionStatusReleased,
		models.TransactionStatusRefunded,
		models.TransactionStatusCancelled,
		models.TransactionStatusExpired,
		models.TransactionStatusSellerRejected,
	}
	for _, status := range terminal {
		assert.True(t, status.IsTerminal(), "%s should be terminal", status)
	}

	open := []models.TransactionStatus{
		models.TransactionStatusPending,
		models.TransactionStatusPaid,
		models.TransactionStatusConfirmed,
		models.TransactionStatusDisputed,
	}
	for _, status := range open {
		assert.False(t, status.IsTerminal(), "%s should not be terminal", status)
	}
}

func TestReserveRespectsDefaultBillingType(t *testing.T) {
	env := newTestEnv(t)
	buyer := env.createUser(t, "buyer-pix")
	seller := env.createUser(t, "seller-pix")
	ticket := env.createTicket(t, seller, "80.00")

	txn, err := env.transactions.Reserve(buyer.ID, ticket.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.BillingTypePix, txn.BillingType)
}

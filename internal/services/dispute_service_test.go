// internal/services/dispute_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/repasso/repasso-backend/internal/models"
)

type DisputeServiceSuite struct {
	suite.Suite
	env    *testEnv
	buyer  *models.User
	seller *models.User
	admin  *models.User
}

func (s *DisputeServiceSuite) SetupTest() {
	s.env = newTestEnv(s.T())
	s.buyer = s.env.createUser(s.T(), "comprador")
	s.seller = s.env.createUser(s.T(), "vendedor")
	s.admin = s.env.createUser(s.T(), "moderador")
}

func TestDisputeServiceSuite(t *testing.T) {
	suite.Run(t, new(DisputeServiceSuite))
}

// openDispute drives a sale to paid and opens a buyer dispute on it.
func (s *DisputeServiceSuite) openDispute() (*models.Dispute, *models.Transaction) {
	txn := s.env.paidTransaction(s.T(), s.buyer, s.seller, "250.00")
	dispute, err := s.env.disputes.Open(s.buyer.ID, txn.ID,
		models.DisputeReasonEntryDenied, "Fui barrado na entrada, o ingresso já tinha sido usado")
	s.Require().NoError(err)
	return dispute, s.env.reloadTransaction(s.T(), txn.ID)
}

func (s *DisputeServiceSuite) reputationOf(userID uuid.UUID) *models.UserReputation {
	var rep models.UserReputation
	s.Require().NoError(s.env.db.First(&rep, "user_id = ?", userID).Error)
	return &rep
}

func (s *DisputeServiceSuite) TestOpenFlipsTransactionToDisputed() {
	dispute, txn := s.openDispute()

	s.Equal(models.DisputeStatusOpen, dispute.Status)
	s.Equal(models.TransactionStatusDisputed, txn.Status)

	rep, err := s.env.reputation.Get(s.buyer.ID)
	s.Require().NoError(err)
	s.Equal(1, rep.DisputesOpened)
}

func (s *DisputeServiceSuite) TestOpenByOutsider() {
	txn := s.env.paidTransaction(s.T(), s.buyer, s.seller, "100.00")
	outsider := s.env.createUser(s.T(), "intruso")

	_, err := s.env.disputes.Open(outsider.ID, txn.ID, models.DisputeReasonOther, "nada a ver")
	s.ErrorIs(err, ErrNotDisputeParticipant)
}

func (s *DisputeServiceSuite) TestOpenRequiresDisputableState() {
	ticket := s.env.createTicket(s.T(), s.seller, "100.00")
	txn, err := s.env.transactions.Reserve(s.buyer.ID, ticket.ID, models.BillingTypePix)
	s.Require().NoError(err)

	_, err = s.env.disputes.Open(s.buyer.ID, txn.ID, models.DisputeReasonOther, "ainda nem paguei")
	s.ErrorIs(err, ErrNotDisputable)
}

func (s *DisputeServiceSuite) TestOpenIsExclusive() {
	_, txn := s.openDispute()

	_, err := s.env.disputes.Open(s.seller.ID, txn.ID, models.DisputeReasonOther, "eu também")
	s.ErrorIs(err, ErrDisputeAlreadyOpen)
}

func (s *DisputeServiceSuite) TestMessagesAndEvidence() {
	dispute, _ := s.openDispute()

	msg, err := s.env.disputes.AddMessage(s.seller.ID, false, dispute.ID, "O ingresso era válido, tenho o comprovante")
	s.Require().NoError(err)
	s.Equal(dispute.ID, msg.DisputeID)

	evidence, err := s.env.disputes.AddEvidence(s.seller.ID, dispute.ID,
		"https://cdn.example.com/prova.png", "prova.png", "print da transferência")
	s.Require().NoError(err)
	s.Equal(dispute.ID, evidence.DisputeID)

	outsider := s.env.createUser(s.T(), "intruso")
	_, err = s.env.disputes.AddMessage(outsider.ID, false, dispute.ID, "oi")
	s.ErrorIs(err, ErrNotDisputeParticipant)
}

func (s *DisputeServiceSuite) TestStartReview() {
	dispute, _ := s.openDispute()

	reviewed, err := s.env.disputes.StartReview(dispute.ID)
	s.Require().NoError(err)
	s.Equal(models.DisputeStatusUnderReview, reviewed.Status)
}

func (s *DisputeServiceSuite) TestResolveRationaleTooShort() {
	dispute, _ := s.openDispute()

	_, err := s.env.disputes.Resolve(context.Background(), s.admin.ID, dispute.ID,
		DisputeDecisionBuyer, "curto demais")
	s.ErrorIs(err, ErrRationaleTooShort)
}

func (s *DisputeServiceSuite) TestResolveInBuyerFavor() {
	dispute, txn := s.openDispute()

	resolved, err := s.env.disputes.Resolve(context.Background(), s.admin.ID, dispute.ID,
		DisputeDecisionBuyer, "Evidência clara de que o ingresso já havia sido utilizado")
	s.Require().NoError(err)

	s.Equal(models.DisputeStatusResolvedBuyer, resolved.Status)
	s.Require().NotNil(resolved.ResolvedByID)
	s.Equal(s.admin.ID, *resolved.ResolvedByID)

	refunded := s.env.reloadTransaction(s.T(), txn.ID)
	s.Equal(models.TransactionStatusRefunded, refunded.Status)
	s.NotNil(refunded.RefundedAt)

	// The seller never gets the money.
	wallet, err := s.env.wallets.GetOrCreate(s.seller.ID)
	s.Require().NoError(err)
	s.True(wallet.AvailableBalance.IsZero())

	sellerRep := s.reputationOf(s.seller.ID)
	s.Equal(1, sellerRep.DisputesLost)
	s.Equal(85, sellerRep.TrustScore)
	s.False(sellerRep.IsSuspicious)

	buyerRep := s.reputationOf(s.buyer.ID)
	s.Equal(1, buyerRep.DisputesWon)
	s.Equal(100, buyerRep.TrustScore)

	// The money moves back through the gateway.
	s.Equal(1, s.env.gateway.refundCount())

	// A system message records the decision.
	var sysCount int64
	s.env.db.Model(&models.DisputeMessage{}).
		Where("dispute_id = ? AND is_system = ?", dispute.ID, true).Count(&sysCount)
	s.EqualValues(1, sysCount)
}

func (s *DisputeServiceSuite) TestResolveInSellerFavor() {
	dispute, txn := s.openDispute()

	resolved, err := s.env.disputes.Resolve(context.Background(), s.admin.ID, dispute.ID,
		DisputeDecisionSeller, "O comprovante do vendedor mostra entrada registrada na catraca")
	s.Require().NoError(err)

	s.Equal(models.DisputeStatusResolvedSeller, resolved.Status)
	s.Equal(models.TransactionStatusReleased, s.env.reloadTransaction(s.T(), txn.ID).Status)

	// Settlement pays the seller share out of escrow.
	wallet, err := s.env.wallets.GetOrCreate(s.seller.ID)
	s.Require().NoError(err)
	s.Equal("225.00", wallet.AvailableBalance.StringFixed(2))

	buyerRep := s.reputationOf(s.buyer.ID)
	s.Equal(1, buyerRep.DisputesLost)
	s.Equal(80, buyerRep.TrustScore)
	s.True(buyerRep.IsSuspicious)

	sellerRep := s.reputationOf(s.seller.ID)
	s.Equal(1, sellerRep.DisputesWon)
	s.Equal(105, sellerRep.TrustScore)

	// No gateway refund on a seller win.
	s.Zero(s.env.gateway.refundCount())
}

func (s *DisputeServiceSuite) TestResolveSplit() {
	dispute, txn := s.openDispute()

	resolved, err := s.env.disputes.Resolve(context.Background(), s.admin.ID, dispute.ID,
		DisputeDecisionSplit, "Ambas as partes agiram de boa fé; acordo combinado fora da plataforma")
	s.Require().NoError(err)

	s.Equal(models.DisputeStatusClosed, resolved.Status)
	s.Equal(models.TransactionStatusReleased, s.env.reloadTransaction(s.T(), txn.ID).Status)

	// Neither side takes a reputation hit on a split.
	buyerRep := s.reputationOf(s.buyer.ID)
	s.Zero(buyerRep.DisputesLost)
	s.Equal(100, buyerRep.TrustScore)
	sellerRep := s.reputationOf(s.seller.ID)
	s.Zero(sellerRep.DisputesLost)
	s.Equal(100, sellerRep.TrustScore)
}

func (s *DisputeServiceSuite) TestResolveTwice() {
	dispute, _ := s.openDispute()

	_, err := s.env.disputes.Resolve(context.Background(), s.admin.ID, dispute.ID,
		DisputeDecisionSeller, "O comprovante do vendedor é conclusivo nesta disputa")
	s.Require().NoError(err)

	_, err = s.env.disputes.Resolve(context.Background(), s.admin.ID, dispute.ID,
		DisputeDecisionBuyer, "Tentativa de reverter a decisão anterior da disputa")
	s.ErrorIs(err, ErrDisputeAlreadyResolved)
}

func (s *DisputeServiceSuite) TestMessagesRejectedAfterResolution() {
	dispute, _ := s.openDispute()

	_, err := s.env.disputes.Resolve(context.Background(), s.admin.ID, dispute.ID,
		DisputeDecisionSeller, "Resolvida a favor do vendedor com base nas evidências")
	s.Require().NoError(err)

	_, err = s.env.disputes.AddMessage(s.buyer.ID, false, dispute.ID, "mas espera")
	s.ErrorIs(err, ErrDisputeNotOpen)
}

func (s *DisputeServiceSuite) TestSuspiciousAfterRepeatedLosses() {
	// Three separate lost disputes flag the seller even though no single
	// loss does.
	for i := 0; i < 3; i++ {
		dispute, _ := s.openDispute()
		_, err := s.env.disputes.Resolve(context.Background(), s.admin.ID, dispute.ID,
			DisputeDecisionBuyer, "Mais uma venda com ingresso inválido deste vendedor")
		s.Require().NoError(err)
	}

	rep := s.reputationOf(s.seller.ID)
	s.Equal(3, rep.DisputesLost)
	s.True(rep.IsSuspicious)
}

// internal/services/transaction_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/repasso/repasso-backend/internal/config"
	"github.com/repasso/repasso-backend/internal/database"
	"github.com/repasso/repasso-backend/internal/gateway"
	"github.com/repasso/repasso-backend/internal/models"
	"github.com/repasso/repasso-backend/internal/monitoring"
	"github.com/repasso/repasso-backend/internal/utils"
)

var (
	ErrTicketUnavailable        = errors.New("ticket is no longer available")
	ErrOwnTicket                = errors.New("you cannot reserve your own ticket")
	ErrNotSeller                = errors.New("only the seller can perform this action")
	ErrNotBuyer                 = errors.New("only the buyer can perform this action")
	ErrReservationWindowExpired = errors.New("reservation window expired")
	ErrPaymentWindowExpired     = errors.New("payment window expired")
	ErrInvalidTransactionState  = errors.New("transaction state does not allow this action")
	ErrNotYetConfirmed          = errors.New("seller has not confirmed the reservation yet")

	// ErrChargeUnavailable is a retryable secondary condition: the local
	// transition already succeeded, only the gateway charge is missing.
	ErrChargeUnavailable = errors.New("payment charge could not be created, try again shortly")
)

// TransactionService is the sole authority over a sale's lifecycle
// state. Every mutation goes through the conditional-transition
// primitive: update status from an expected pre-state together with all
// dependent writes in one atomic unit, and treat a pre-state mismatch
// as a successful no-op. That single discipline makes user actions, the
// webhook and the reconciliation sweep safe against each other.
type TransactionService struct {
	db            *gorm.DB
	config        *config.Config
	gateway       gateway.Gateway
	wallets       *WalletService
	reputation    *ReputationService
	notifications *NotificationService
}

func NewTransactionService(db *gorm.DB, cfg *config.Config, gw gateway.Gateway, wallets *WalletService, reputation *ReputationService, notifications *NotificationService) *TransactionService {
	return &TransactionService{
		db:            db,
		config:        cfg,
		gateway:       gw,
		wallets:       wallets,
		reputation:    reputation,
		notifications: notifications,
	}
}

// SplitAmount divides a sale amount into platform fee and seller share.
// The fee is rounded to cents and the seller share is the remainder, so
// fee + share always reconstructs the amount exactly.
func (s *TransactionService) SplitAmount(amount decimal.Decimal) (fee, sellerAmount decimal.Decimal) {
	percent := decimal.NewFromFloat(s.config.Escrow.PlatformFeePercent)
	fee = amount.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
	sellerAmount = amount.Sub(fee)
	return fee, sellerAmount
}

// transition is the conditional-transition primitive. It applies the
// status change plus extra column writes only when the persisted status
// still matches one of the expected pre-states, and reports whether the
// write was applied. RowsAffected == 0 is not an error.
func (s *TransactionService) transition(db *gorm.DB, id uuid.UUID, from []models.TransactionStatus, to models.TransactionStatus, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to

	res := db.Model(&models.Transaction{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition transaction %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *TransactionService) setTicketStatus(db *gorm.DB, ticketID uuid.UUID, status models.TicketStatus) error {
	if err := db.Model(&models.Ticket{}).Where("id = ?", ticketID).Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update ticket %s: %w", ticketID, err)
	}
	return nil
}

// Reserve creates the escrow record for a ticket and opens the seller
// confirmation window. The ticket flips to reserved in the same atomic
// unit; a concurrent reservation loses the conditional write and gets
// ErrTicketUnavailable.
func (s *TransactionService) Reserve(buyerID, ticketID uuid.UUID, billing models.BillingType) (*models.Transaction, error) {
	var ticket models.Ticket
	if err := s.db.First(&ticket, "id = ?", ticketID).Error; err != nil {
		return nil, fmt.Errorf("ticket not found: %w", err)
	}
	if ticket.SellerID == buyerID {
		return nil, ErrOwnTicket
	}
	if ticket.Status != models.TicketStatusAvailable {
		return nil, ErrTicketUnavailable
	}
	if billing == "" {
		billing = models.BillingTypePix
	}

	fee, sellerAmount := s.SplitAmount(ticket.Price)
	txn := &models.Transaction{
		TicketID:     ticket.ID,
		BuyerID:      buyerID,
		SellerID:     ticket.SellerID,
		Amount:       ticket.Price,
		PlatformFee:  fee,
		SellerAmount: sellerAmount,
		BillingType:  billing,
		Status:       models.TransactionStatusPending,
		ExpiresAt:    time.Now().Add(s.config.Escrow.ReservationWindow),
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		res := tx.Model(&models.Ticket{}).
			Where("id = ? AND status = ?", ticket.ID, models.TicketStatusAvailable).
			Update("status", models.TicketStatusReserved)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTicketUnavailable
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}

	monitoring.TrackTransition("pending", "reserve")
	s.notifications.NotifyReservationCreated(txn)
	return txn, nil
}

// SellerConfirm accepts a reservation and opens the payment window. The
// local transition always lands first; gateway charge creation failure
// is reported as ErrChargeUnavailable alongside the updated transaction
// so the buyer can retry fetching payment details.
func (s *TransactionService) SellerConfirm(ctx context.Context, sellerID, txnID uuid.UUID) (*models.Transaction, error) {
	txn, err := s.GetByID(txnID)
	if err != nil {
		return nil, err
	}
	if txn.SellerID != sellerID {
		return nil, ErrNotSeller
	}
	if txn.Status != models.TransactionStatusPending {
		return nil, ErrInvalidTransactionState
	}
	if txn.SellerConfirmed() {
		return txn, nil
	}
	if time.Now().After(txn.ExpiresAt) {
		if _, err := s.closeReservation(txn, "confirmation window elapsed", true); err != nil {
			logrus.WithError(err).WithField("transaction_id", txn.ID).Error("Failed to expire reservation")
		}
		return nil, ErrReservationWindowExpired
	}

	now := time.Now()
	paymentDeadline := now.Add(s.config.Escrow.PaymentWindow)
	res := s.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ? AND seller_confirmed_at IS NULL", txn.ID, models.TransactionStatusPending).
		Updates(map[string]interface{}{
			"seller_confirmed_at": now,
			"expires_at":          paymentDeadline,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to confirm reservation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Concurrent confirm or a state change raced us; surface the
		// current row as a successful no-op.
		return s.GetByID(txnID)
	}
	txn.SellerConfirmedAt = &now
	txn.ExpiresAt = paymentDeadline
	monitoring.TrackTransition("pending_payment", "seller_confirm")

	chargeErr := s.ensureCharge(ctx, txn)
	s.notifications.NotifyReservationConfirmed(txn)
	if chargeErr != nil {
		logrus.WithError(chargeErr).WithField("transaction_id", txn.ID).Warn("Charge creation deferred")
		return txn, ErrChargeUnavailable
	}
	return txn, nil
}

// RetryCharge lets the buyer re-request payment details after a
// deferred charge creation.
func (s *TransactionService) RetryCharge(ctx context.Context, buyerID, txnID uuid.UUID) (*models.Transaction, error) {
	txn, err := s.GetByID(txnID)
	if err != nil {
		return nil, err
	}
	if txn.BuyerID != buyerID {
		return nil, ErrNotBuyer
	}
	if txn.Status != models.TransactionStatusPending {
		return nil, ErrInvalidTransactionState
	}
	if !txn.SellerConfirmed() {
		return nil, ErrNotYetConfirmed
	}
	if time.Now().After(txn.ExpiresAt) {
		if _, err := s.ExpirePayment(txn.ID); err != nil {
			logrus.WithError(err).WithField("transaction_id", txn.ID).Error("Failed to expire payment window")
		}
		return nil, ErrPaymentWindowExpired
	}

	if err := s.ensureCharge(ctx, txn); err != nil {
		return txn, ErrChargeUnavailable
	}
	return txn, nil
}

// ensureCharge creates the gateway charge for a confirmed reservation
// if it does not exist yet, and persists the gateway linkage.
func (s *TransactionService) ensureCharge(ctx context.Context, txn *models.Transaction) error {
	if txn.PaymentID != "" {
		return nil
	}

	var buyer models.User
	if err := s.db.First(&buyer, "id = ?", txn.BuyerID).Error; err != nil {
		return fmt.Errorf("buyer not found: %w", err)
	}
	if buyer.CPF == "" {
		return fmt.Errorf("buyer has no tax id on file")
	}

	customerID := buyer.GatewayCustomerID
	if customerID == "" {
		id, err := s.gateway.CreateOrFindCustomer(ctx, gateway.CustomerRequest{
			Name:  buyer.FullName,
			Email: buyer.Email,
			CPF:   buyer.CPF,
			Phone: buyer.Phone,
		})
		if err != nil {
			return err
		}
		customerID = id
		if err := s.db.Model(&buyer).Update("gateway_customer_id", id).Error; err != nil {
			logrus.WithError(err).WithField("user_id", buyer.ID).Error("Failed to cache gateway customer id")
		}
	}

	charge, err := s.gateway.CreateCharge(ctx, gateway.ChargeRequest{
		CustomerID:        customerID,
		Value:             txn.Amount,
		ExternalReference: txn.ID.String(),
		BillingType:       string(txn.BillingType),
		Description:       "Repasso ticket purchase",
		DueDate:           time.Now().Format("2006-01-02"),
	})
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"payment_id":  charge.ID,
		"invoice_url": charge.InvoiceURL,
	}
	if txn.BillingType == models.BillingTypePix {
		if qr, err := s.gateway.GetPixQRCode(ctx, charge.ID); err != nil {
			logrus.WithError(err).WithField("charge_id", charge.ID).Warn("Failed to fetch PIX QR code")
		} else {
			updates["pix_qr_code"] = qr
			txn.PixQRCode = qr
		}
	}
	if err := s.db.Model(&models.Transaction{}).Where("id = ?", txn.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to persist charge linkage: %w", err)
	}
	txn.PaymentID = charge.ID
	txn.InvoiceURL = charge.InvoiceURL
	return nil
}

// SellerReject declines a reservation and releases the ticket, with no
// penalty to either side.
func (s *TransactionService) SellerReject(sellerID, txnID uuid.UUID, reason string) (*models.Transaction, error) {
	txn, err := s.GetByID(txnID)
	if err != nil {
		return nil, err
	}
	if txn.SellerID != sellerID {
		return nil, ErrNotSeller
	}
	if txn.Status != models.TransactionStatusPending {
		return nil, ErrInvalidTransactionState
	}
	if reason == "" {
		reason = "rejected by seller"
	}

	applied, err := s.closeReservation(txn, reason, false)
	if err != nil {
		return nil, err
	}
	if applied {
		monitoring.TrackTransition("seller_rejected", "seller_reject")
	}
	return s.GetByID(txnID)
}

// ExpireConfirmation lazily expires a reservation whose confirmation
// window elapsed without a seller decision. The outcome is identical to
// an explicit rejection.
func (s *TransactionService) ExpireConfirmation(txn *models.Transaction) (bool, error) {
	applied, err := s.closeReservation(txn, "confirmation window elapsed", true)
	if applied {
		monitoring.TrackTransition("seller_rejected", "expire_confirmation")
	}
	return applied, err
}

func (s *TransactionService) closeReservation(txn *models.Transaction, reason string, expired bool) (bool, error) {
	var applied bool
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		ok, err := s.transition(tx, txn.ID,
			[]models.TransactionStatus{models.TransactionStatusPending},
			models.TransactionStatusSellerRejected,
			map[string]interface{}{"cancel_reason": reason})
		if err != nil {
			return err
		}
		applied = ok
		if !ok {
			return nil
		}
		return s.setTicketStatus(tx, txn.TicketID, models.TicketStatusAvailable)
	})
	if err != nil {
		return false, err
	}
	if applied {
		s.notifications.NotifyReservationRejected(txn, expired)
	}
	return applied, nil
}

// MarkPaid drives a pending transaction to paid and the ticket to sold
// in one atomic unit. It is shared by the webhook and the
// reconciliation sweep; duplicate delivery is a no-op.
func (s *TransactionService) MarkPaid(txnID uuid.UUID, gatewayPaymentID, source string) (bool, error) {
	txn, err := s.GetByID(txnID)
	if err != nil {
		return false, err
	}

	now := time.Now()
	updates := map[string]interface{}{"paid_at": now}
	if gatewayPaymentID != "" {
		updates["payment_id"] = gatewayPaymentID
	}

	var applied bool
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		ok, err := s.transition(tx, txn.ID,
			[]models.TransactionStatus{models.TransactionStatusPending},
			models.TransactionStatusPaid, updates)
		if err != nil {
			return err
		}
		applied = ok
		if !ok {
			return nil
		}
		return s.setTicketStatus(tx, txn.TicketID, models.TicketStatusSold)
	})
	if err != nil {
		return false, err
	}

	if applied {
		monitoring.TrackTransition("paid", source)
		s.notifications.NotifyPaymentReceived(txn)
	}
	return applied, nil
}

// ExpirePayment drives a pending transaction past its payment deadline
// to expired and releases the ticket.
func (s *TransactionService) ExpirePayment(txnID uuid.UUID) (bool, error) {
	txn, err := s.GetByID(txnID)
	if err != nil {
		return false, err
	}

	var applied bool
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		ok, err := s.transition(tx, txn.ID,
			[]models.TransactionStatus{models.TransactionStatusPending},
			models.TransactionStatusExpired,
			map[string]interface{}{"cancel_reason": "payment window elapsed"})
		if err != nil {
			return err
		}
		applied = ok
		if !ok {
			return nil
		}
		return s.setTicketStatus(tx, txn.TicketID, models.TicketStatusAvailable)
	})
	if err != nil {
		return false, err
	}
	if applied {
		monitoring.TrackTransition("expired", "expire_payment")
		s.notifications.NotifyReservationRejected(txn, true)
	}
	return applied, nil
}

// CancelFromGateway handles the gateway reporting a deleted charge.
func (s *TransactionService) CancelFromGateway(txnID uuid.UUID) (bool, error) {
	txn, err := s.GetByID(txnID)
	if err != nil {
		return false, err
	}

	var applied bool
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		ok, err := s.transition(tx, txn.ID,
			[]models.TransactionStatus{models.TransactionStatusPending},
			models.TransactionStatusCancelled,
			map[string]interface{}{"cancel_reason": "charge deleted at gateway"})
		if err != nil {
			return err
		}
		applied = ok
		if !ok {
			return nil
		}
		return s.setTicketStatus(tx, txn.TicketID, models.TicketStatusAvailable)
	})
	if err != nil {
		return false, err
	}
	if applied {
		monitoring.TrackTransition("cancelled", "webhook")
	}
	return applied, nil
}

// MarkRefunded records a refund reported by the gateway. The ticket
// stays in its terminal state: the sale already happened and was undone
// with money, not inventory.
func (s *TransactionService) MarkRefunded(txnID uuid.UUID, source string) (bool, error) {
	txn, err := s.GetByID(txnID)
	if err != nil {
		return false, err
	}

	applied, err := s.transition(s.db, txn.ID,
		[]models.TransactionStatus{models.TransactionStatusPaid, models.TransactionStatusDisputed},
		models.TransactionStatusRefunded,
		map[string]interface{}{"refunded_at": time.Now()})
	if err != nil {
		return false, err
	}
	if applied {
		monitoring.TrackTransition("refunded", source)
		s.notifications.NotifyRefund(txn)
	}
	return applied, nil
}

// RefundInTx is the dispute engine's settlement hook: it flips a
// disputed transaction to refunded inside the caller's atomic unit.
func (s *TransactionService) RefundInTx(db *gorm.DB, txn *models.Transaction) (bool, error) {
	return s.transition(db, txn.ID,
		[]models.TransactionStatus{models.TransactionStatusDisputed},
		models.TransactionStatusRefunded,
		map[string]interface{}{"refunded_at": time.Now()})
}

// MarkChargeback flips a paid transaction to disputed when the gateway
// reports a chargeback, opening a system dispute for admin review.
func (s *TransactionService) MarkChargeback(txnID uuid.UUID) (bool, error) {
	txn, err := s.GetByID(txnID)
	if err != nil {
		return false, err
	}

	var applied bool
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		ok, err := s.transition(tx, txn.ID,
			[]models.TransactionStatus{models.TransactionStatusPaid},
			models.TransactionStatusDisputed, nil)
		if err != nil {
			return err
		}
		applied = ok
		if !ok {
			return nil
		}

		dispute := &models.Dispute{
			TransactionID: txn.ID,
			OpenedByID:    txn.BuyerID,
			Reason:        models.DisputeReasonChargeback,
			Description:   "Chargeback requested at the payment gateway",
			Status:        models.DisputeStatusUnderReview,
		}
		return tx.Create(dispute).Error
	})
	if err != nil {
		return false, err
	}
	if applied {
		monitoring.TrackTransition("disputed", "chargeback")
	}
	return applied, nil
}

// BuyerConfirmEntry acknowledges the buyer got into the event, starting
// the no-dispute delay before funds release.
func (s *TransactionService) BuyerConfirmEntry(buyerID, txnID uuid.UUID) (*models.Transaction, error) {
	txn, err := s.GetByID(txnID)
	if err != nil {
		return nil, err
	}
	if txn.BuyerID != buyerID {
		return nil, ErrNotBuyer
	}
	if txn.Status != models.TransactionStatusPaid {
		return nil, ErrInvalidTransactionState
	}

	now := time.Now()
	releaseAt := now.Add(s.config.Escrow.ReleaseDelay)
	applied, err := s.transition(s.db, txn.ID,
		[]models.TransactionStatus{models.TransactionStatusPaid},
		models.TransactionStatusConfirmed,
		map[string]interface{}{
			"confirmed_at": now,
			"release_at":   releaseAt,
		})
	if err != nil {
		return nil, err
	}
	if applied {
		monitoring.TrackTransition("confirmed", "buyer_confirm")
	}
	return s.GetByID(txnID)
}

// Release settles a confirmed transaction in the seller's favor:
// transaction released, ticket completed, wallet credited with the
// seller share and reputation counters bumped, all in one atomic unit.
func (s *TransactionService) Release(txnID uuid.UUID) (bool, error) {
	txn, err := s.GetByID(txnID)
	if err != nil {
		return false, err
	}

	var applied bool
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		ok, err := s.ReleaseInTx(tx, txn, models.TransactionStatusConfirmed)
		applied = ok
		return err
	})
	if err != nil {
		return false, err
	}
	if applied {
		monitoring.TrackTransition("released", "release")
		s.notifications.NotifyFundsReleased(txn)
	}
	return applied, nil
}

// ReleaseInTx performs the released transition plus its dependent
// writes inside the caller's atomic unit. The wallet credit rides the
// same conditional write as the status change, so re-delivery can never
// credit the seller twice.
func (s *TransactionService) ReleaseInTx(db *gorm.DB, txn *models.Transaction, from ...models.TransactionStatus) (bool, error) {
	if len(from) == 0 {
		from = []models.TransactionStatus{models.TransactionStatusConfirmed}
	}

	ok, err := s.transition(db, txn.ID, from, models.TransactionStatusReleased,
		map[string]interface{}{"released_at": time.Now()})
	if err != nil || !ok {
		return false, err
	}

	if err := s.setTicketStatus(db, txn.TicketID, models.TicketStatusCompleted); err != nil {
		return false, err
	}
	if err := s.wallets.Credit(db, txn.SellerID, txn.SellerAmount, "transaction", txn.ID, "Ticket sale payout"); err != nil {
		return false, err
	}
	if err := s.reputation.RecordCompletedSale(db, txn.SellerID, txn.BuyerID); err != nil {
		return false, err
	}
	return true, nil
}

// GetByID loads a transaction with its ticket and parties.
func (s *TransactionService) GetByID(id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.db.Preload("Ticket").Preload("Buyer").Preload("Seller").
		First(&txn, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("transaction not found: %w", err)
	}
	return &txn, nil
}

// GetForParticipant loads a transaction, requiring the caller to be the
// buyer, the seller, or an admin.
func (s *TransactionService) GetForParticipant(userID uuid.UUID, isAdmin bool, id uuid.UUID) (*models.Transaction, error) {
	txn, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && txn.BuyerID != userID && txn.SellerID != userID {
		return nil, errors.New("transaction does not belong to you")
	}
	return txn, nil
}

// ListForUser returns the user's transactions on both sides of the
// table.
func (s *TransactionService) ListForUser(userID uuid.UUID, params utils.PaginationParams) ([]models.Transaction, int64, error) {
	query := s.db.Model(&models.Transaction{}).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Preload("Ticket")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	allowedSortFields := []string{"created_at", "amount", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var transactions []models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	return transactions, total, nil
}

// ListAll is the admin view over every transaction.
func (s *TransactionService) ListAll(status models.TransactionStatus, params utils.PaginationParams) ([]models.Transaction, int64, error) {
	query := s.db.Model(&models.Transaction{}).Preload("Ticket")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	allowedSortFields := []string{"created_at", "amount", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var transactions []models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	return transactions, total, nil
}

// internal/services/dispute_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/repasso/repasso-backend/internal/database"
	"github.com/repasso/repasso-backend/internal/models"
	"github.com/repasso/repasso-backend/internal/monitoring"
	"github.com/repasso/repasso-backend/internal/utils"
)

// minResolutionLength keeps admins from closing disputes with a
// throwaway rationale.
const minResolutionLength = 20

// Reputation deltas applied by admin resolution.
const (
	sellerLossPenalty = 15
	buyerLossPenalty  = 20
	sellerWinBonus    = 5
)

var (
	ErrNotDisputable          = errors.New("transaction cannot be disputed in its current state")
	ErrDisputeAlreadyOpen     = errors.New("this transaction already has an open dispute")
	ErrDisputeNotOpen         = errors.New("dispute is no longer open")
	ErrDisputeAlreadyResolved = errors.New("dispute has already been resolved")
	ErrRationaleTooShort      = fmt.Errorf("resolution rationale must be at least %d characters", minResolutionLength)
	ErrNotDisputeParticipant  = errors.New("dispute does not belong to you")
)

type DisputeDecision string

const (
	DisputeDecisionBuyer  DisputeDecision = "buyer"
	DisputeDecisionSeller DisputeDecision = "seller"
	DisputeDecisionSplit  DisputeDecision = "split"
)

// DisputeService opens, tracks and administratively resolves disputes.
// Resolution is the only path that settles a disputed transaction.
type DisputeService struct {
	db            *gorm.DB
	transactions  *TransactionService
	payments      *PaymentService
	reputation    *ReputationService
	notifications *NotificationService
}

func NewDisputeService(db *gorm.DB, transactions *TransactionService, payments *PaymentService, reputation *ReputationService, notifications *NotificationService) *DisputeService {
	return &DisputeService{
		db:            db,
		transactions:  transactions,
		payments:      payments,
		reputation:    reputation,
		notifications: notifications,
	}
}

// Open creates a dispute on a paid or confirmed transaction and flips
// the transaction to disputed in the same atomic unit. At most one
// open dispute may exist per transaction.
func (s *DisputeService) Open(userID, txnID uuid.UUID, reason models.DisputeReason, description string) (*models.Dispute, error) {
	txn, err := s.transactions.GetByID(txnID)
	if err != nil {
		return nil, err
	}
	if txn.BuyerID != userID && txn.SellerID != userID {
		return nil, ErrNotDisputeParticipant
	}

	var openCount int64
	err = s.db.Model(&models.Dispute{}).
		Where("transaction_id = ? AND status IN ?", txn.ID,
			[]models.DisputeStatus{models.DisputeStatusOpen, models.DisputeStatusUnderReview}).
		Count(&openCount).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing dispute: %w", err)
	}
	if openCount > 0 {
		return nil, ErrDisputeAlreadyOpen
	}

	if txn.Status != models.TransactionStatusPaid && txn.Status != models.TransactionStatusConfirmed {
		return nil, ErrNotDisputable
	}

	dispute := &models.Dispute{
		TransactionID: txn.ID,
		OpenedByID:    userID,
		Reason:        reason,
		Description:   description,
		Status:        models.DisputeStatusOpen,
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		applied, err := s.transactions.transition(tx, txn.ID,
			[]models.TransactionStatus{models.TransactionStatusPaid, models.TransactionStatusConfirmed},
			models.TransactionStatusDisputed, nil)
		if err != nil {
			return err
		}
		if !applied {
			// A concurrent settlement won the race.
			return ErrNotDisputable
		}
		if err := tx.Create(dispute).Error; err != nil {
			return fmt.Errorf("failed to create dispute: %w", err)
		}
		return s.reputation.RecordDisputeOpened(tx, userID)
	})
	if err != nil {
		return nil, err
	}

	monitoring.TrackTransition("disputed", "dispute_open")
	counterparty := txn.SellerID
	if userID == txn.SellerID {
		counterparty = txn.BuyerID
	}
	s.notifications.NotifyDisputeOpened(dispute, counterparty)
	return dispute, nil
}

// AddMessage appends to the dispute's message log. Messages are never
// edited or deleted.
func (s *DisputeService) AddMessage(userID uuid.UUID, isAdmin bool, disputeID uuid.UUID, message string) (*models.DisputeMessage, error) {
	dispute, err := s.GetForParticipant(userID, isAdmin, disputeID)
	if err != nil {
		return nil, err
	}
	if !dispute.IsOpen() {
		return nil, ErrDisputeNotOpen
	}

	msg := &models.DisputeMessage{
		DisputeID: dispute.ID,
		SenderID:  &userID,
		Message:   message,
	}
	if err := s.db.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to append dispute message: %w", err)
	}
	return msg, nil
}

// AddEvidence attaches an uploaded file to the dispute. Evidence rows
// are append-only.
func (s *DisputeService) AddEvidence(userID uuid.UUID, disputeID uuid.UUID, fileURL, fileName, description string) (*models.DisputeEvidence, error) {
	dispute, err := s.GetForParticipant(userID, false, disputeID)
	if err != nil {
		return nil, err
	}
	if !dispute.IsOpen() {
		return nil, ErrDisputeNotOpen
	}

	evidence := &models.DisputeEvidence{
		DisputeID:    dispute.ID,
		UploadedByID: userID,
		FileURL:      fileURL,
		FileName:     fileName,
		Description:  description,
	}
	if err := s.db.Create(evidence).Error; err != nil {
		return nil, fmt.Errorf("failed to attach evidence: %w", err)
	}
	return evidence, nil
}

// StartReview moves an open dispute into admin review.
func (s *DisputeService) StartReview(disputeID uuid.UUID) (*models.Dispute, error) {
	res := s.db.Model(&models.Dispute{}).
		Where("id = ? AND status = ?", disputeID, models.DisputeStatusOpen).
		Update("status", models.DisputeStatusUnderReview)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to start review: %w", res.Error)
	}
	return s.GetByID(disputeID)
}

// Resolve settles a dispute with an admin decision. The dispute close,
// the transaction settlement, the reputation updates and the system
// message land in one atomic unit; a second resolution attempt fails
// the conditional dispute update and changes nothing.
func (s *DisputeService) Resolve(ctx context.Context, adminID, disputeID uuid.UUID, decision DisputeDecision, rationale string) (*models.Dispute, error) {
	if len(rationale) < minResolutionLength {
		return nil, ErrRationaleTooShort
	}

	dispute, err := s.GetByID(disputeID)
	if err != nil {
		return nil, err
	}
	txn, err := s.transactions.GetByID(dispute.TransactionID)
	if err != nil {
		return nil, err
	}

	var disputeStatus models.DisputeStatus
	switch decision {
	case DisputeDecisionBuyer:
		disputeStatus = models.DisputeStatusResolvedBuyer
	case DisputeDecisionSeller:
		disputeStatus = models.DisputeStatusResolvedSeller
	case DisputeDecisionSplit:
		disputeStatus = models.DisputeStatusClosed
	default:
		return nil, fmt.Errorf("unknown decision %q", decision)
	}

	now := time.Now()
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		res := tx.Model(&models.Dispute{}).
			Where("id = ? AND status IN ?", dispute.ID,
				[]models.DisputeStatus{models.DisputeStatusOpen, models.DisputeStatusUnderReview}).
			Updates(map[string]interface{}{
				"status":         disputeStatus,
				"resolution":     rationale,
				"resolved_by_id": adminID,
				"resolved_at":    now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to resolve dispute: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrDisputeAlreadyResolved
		}

		switch decision {
		case DisputeDecisionBuyer:
			applied, err := s.transactions.RefundInTx(tx, txn)
			if err != nil {
				return err
			}
			if !applied {
				return ErrInvalidTransactionState
			}
			if err := s.reputation.RecordDisputeLost(tx, txn.SellerID, sellerLossPenalty, false); err != nil {
				return err
			}
			if err := s.reputation.RecordDisputeWon(tx, txn.BuyerID, 0); err != nil {
				return err
			}

		case DisputeDecisionSeller:
			applied, err := s.transactions.ReleaseInTx(tx, txn, models.TransactionStatusDisputed)
			if err != nil {
				return err
			}
			if !applied {
				return ErrInvalidTransactionState
			}
			if err := s.reputation.RecordDisputeLost(tx, txn.BuyerID, buyerLossPenalty, true); err != nil {
				return err
			}
			if err := s.reputation.RecordDisputeWon(tx, txn.SellerID, sellerWinBonus); err != nil {
				return err
			}

		case DisputeDecisionSplit:
			// Full funds go to the seller with no automatic reputation
			// change; any split of the money itself is handled manually
			// by the operations team.
			applied, err := s.transactions.ReleaseInTx(tx, txn, models.TransactionStatusDisputed)
			if err != nil {
				return err
			}
			if !applied {
				return ErrInvalidTransactionState
			}
		}

		systemMsg := &models.DisputeMessage{
			DisputeID: dispute.ID,
			IsSystem:  true,
			Message:   fmt.Sprintf("Dispute resolved (%s): %s", decision, rationale),
		}
		return tx.Create(systemMsg).Error
	})
	if err != nil {
		return nil, err
	}

	switch decision {
	case DisputeDecisionBuyer:
		monitoring.TrackTransition("refunded", "dispute")
		// Money actually moves back through the gateway; a failure here
		// is retryable and confirmed later by webhook/reconciliation.
		if err := s.payments.RequestRefund(ctx, txn); err != nil {
			logrus.WithError(err).WithField("transaction_id", txn.ID).Error("Gateway refund request failed")
		}
	default:
		monitoring.TrackTransition("released", "dispute")
	}

	resolved, err := s.GetByID(disputeID)
	if err != nil {
		return nil, err
	}
	s.notifications.NotifyDisputeResolved(resolved, txn.BuyerID)
	s.notifications.NotifyDisputeResolved(resolved, txn.SellerID)
	return resolved, nil
}

// GetByID loads a dispute with its children.
func (s *DisputeService) GetByID(id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := s.db.Preload("Transaction").Preload("Evidence").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at")
		}).
		First(&dispute, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("dispute not found: %w", err)
	}
	return &dispute, nil
}

// GetForParticipant loads a dispute, requiring the caller to be a party
// to the underlying transaction or an admin.
func (s *DisputeService) GetForParticipant(userID uuid.UUID, isAdmin bool, id uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if isAdmin {
		return dispute, nil
	}
	if dispute.Transaction.BuyerID != userID && dispute.Transaction.SellerID != userID {
		return nil, ErrNotDisputeParticipant
	}
	return dispute, nil
}

// ListForUser returns disputes on transactions the user participates
// in.
func (s *DisputeService) ListForUser(userID uuid.UUID, params utils.PaginationParams) ([]models.Dispute, int64, error) {
	query := s.db.Model(&models.Dispute{}).
		Joins("JOIN transactions ON transactions.id = disputes.transaction_id").
		Where("transactions.buyer_id = ? OR transactions.seller_id = ?", userID, userID).
		Preload("Transaction")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count disputes: %w", err)
	}

	var disputes []models.Dispute
	if err := utils.ApplyPagination(query.Order("disputes.created_at DESC"), params).Find(&disputes).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch disputes: %w", err)
	}
	return disputes, total, nil
}

// ListAll is the admin dispute queue.
func (s *DisputeService) ListAll(status models.DisputeStatus, params utils.PaginationParams) ([]models.Dispute, int64, error) {
	query := s.db.Model(&models.Dispute{}).Preload("Transaction")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count disputes: %w", err)
	}

	var disputes []models.Dispute
	if err := utils.ApplyPagination(query.Order("created_at DESC"), params).Find(&disputes).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch disputes: %w", err)
	}
	return disputes, total, nil
}

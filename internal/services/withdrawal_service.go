// internal/services/withdrawal_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/repasso/repasso-backend/internal/config"
	"github.com/repasso/repasso-backend/internal/database"
	"github.com/repasso/repasso-backend/internal/models"
	"github.com/repasso/repasso-backend/internal/monitoring"
	"github.com/repasso/repasso-backend/internal/utils"
)

var (
	ErrNotVerified           = errors.New("identity verification is required before withdrawing")
	ErrWithdrawalBelowMin    = errors.New("withdrawal amount is below the minimum")
	ErrWithdrawalInProgress  = errors.New("another withdrawal is already in progress")
	ErrWithdrawalNotPending  = errors.New("withdrawal is not pending")
	ErrWithdrawalNotOpen     = errors.New("withdrawal has already been finalized")
	ErrRejectionReasonNeeded = errors.New("a rejection reason is required")
)

// WithdrawalService runs the payout queue. Funds leave the available
// balance the moment the request is accepted; a rejection puts them
// back through a fresh credit ledger line, never by deleting the debit.
type WithdrawalService struct {
	db            *gorm.DB
	config        *config.Config
	wallets       *WalletService
	notifications *NotificationService
}

func NewWithdrawalService(db *gorm.DB, cfg *config.Config, wallets *WalletService, notifications *NotificationService) *WithdrawalService {
	return &WithdrawalService{
		db:            db,
		config:        cfg,
		wallets:       wallets,
		notifications: notifications,
	}
}

// Request creates a pending withdrawal and debits the wallet in one
// atomic unit. Only one withdrawal may be in flight per user.
func (s *WithdrawalService) Request(userID uuid.UUID, amount decimal.Decimal, pixKey string) (*models.Withdrawal, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	if user.VerificationLevel != models.VerificationLevelVerified {
		return nil, ErrNotVerified
	}

	minimum := decimal.NewFromFloat(s.config.Escrow.MinimumWithdrawal)
	if amount.LessThan(minimum) {
		return nil, ErrWithdrawalBelowMin
	}

	var withdrawal *models.Withdrawal
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		wallet, err := s.wallets.getOrCreateLocked(tx, userID)
		if err != nil {
			return err
		}

		// Counted under the wallet lock: a concurrent request holds on
		// the same row until this unit commits, so it sees our pending
		// row instead of racing past the check.
		var inFlight int64
		err = tx.Model(&models.Withdrawal{}).
			Where("user_id = ? AND status IN ?", userID,
				[]models.WithdrawalStatus{models.WithdrawalStatusPending, models.WithdrawalStatusProcessing}).
			Count(&inFlight).Error
		if err != nil {
			return fmt.Errorf("failed to check in-flight withdrawals: %w", err)
		}
		if inFlight > 0 {
			return ErrWithdrawalInProgress
		}

		withdrawal = &models.Withdrawal{
			WalletID: wallet.ID,
			UserID:   userID,
			Amount:   amount,
			PixKey:   pixKey,
			Status:   models.WithdrawalStatusPending,
		}
		if err := tx.Create(withdrawal).Error; err != nil {
			return fmt.Errorf("failed to create withdrawal: %w", err)
		}

		return s.wallets.Debit(tx, userID, amount, "withdrawal", withdrawal.ID,
			fmt.Sprintf("Saque via PIX (%s)", pixKey))
	})
	if err != nil {
		return nil, err
	}

	monitoring.TrackWalletOperation("withdrawal_requested")
	s.notifications.NotifyWithdrawalUpdate(withdrawal)
	return withdrawal, nil
}

// Process claims a pending withdrawal for manual payout.
func (s *WithdrawalService) Process(adminID, withdrawalID uuid.UUID) (*models.Withdrawal, error) {
	now := time.Now()
	res := s.db.Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", withdrawalID, models.WithdrawalStatusPending).
		Updates(map[string]interface{}{
			"status":          models.WithdrawalStatusProcessing,
			"processed_by_id": adminID,
			"processed_at":    now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to process withdrawal: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrWithdrawalNotPending
	}
	return s.GetByID(withdrawalID)
}

// Complete marks the payout as sent and counts it against the wallet's
// lifetime withdrawn total. The debit already happened at request time.
func (s *WithdrawalService) Complete(withdrawalID uuid.UUID) (*models.Withdrawal, error) {
	withdrawal, err := s.GetByID(withdrawalID)
	if err != nil {
		return nil, err
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		res := tx.Model(&models.Withdrawal{}).
			Where("id = ? AND status = ?", withdrawal.ID, models.WithdrawalStatusProcessing).
			Updates(map[string]interface{}{
				"status":       models.WithdrawalStatusCompleted,
				"completed_at": time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to complete withdrawal: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrWithdrawalNotOpen
		}

		return tx.Model(&models.Wallet{}).
			Where("id = ?", withdrawal.WalletID).
			Update("total_withdrawn", gorm.Expr("total_withdrawn + ?", withdrawal.Amount)).Error
	})
	if err != nil {
		return nil, err
	}

	monitoring.TrackWalletOperation("withdrawal_completed")
	completed, err := s.GetByID(withdrawalID)
	if err != nil {
		return nil, err
	}
	s.notifications.NotifyWithdrawalUpdate(completed)
	return completed, nil
}

// Reject refuses a pending or processing withdrawal and returns the
// funds with a compensating credit ledger line.
func (s *WithdrawalService) Reject(adminID, withdrawalID uuid.UUID, reason string) (*models.Withdrawal, error) {
	if reason == "" {
		return nil, ErrRejectionReasonNeeded
	}

	withdrawal, err := s.GetByID(withdrawalID)
	if err != nil {
		return nil, err
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		res := tx.Model(&models.Withdrawal{}).
			Where("id = ? AND status IN ?", withdrawal.ID,
				[]models.WithdrawalStatus{models.WithdrawalStatusPending, models.WithdrawalStatusProcessing}).
			Updates(map[string]interface{}{
				"status":           models.WithdrawalStatusRejected,
				"rejection_reason": reason,
				"processed_by_id":  adminID,
				"processed_at":     time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to reject withdrawal: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrWithdrawalNotOpen
		}

		return s.wallets.Credit(tx, withdrawal.UserID, withdrawal.Amount, "withdrawal_rejected", withdrawal.ID,
			fmt.Sprintf("Estorno de saque recusado: %s", reason))
	})
	if err != nil {
		return nil, err
	}

	monitoring.TrackWalletOperation("withdrawal_rejected")
	rejected, err := s.GetByID(withdrawalID)
	if err != nil {
		return nil, err
	}
	s.notifications.NotifyWithdrawalUpdate(rejected)
	return rejected, nil
}

func (s *WithdrawalService) GetByID(id uuid.UUID) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := s.db.First(&withdrawal, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("withdrawal not found: %w", err)
	}
	return &withdrawal, nil
}

// ListForUser returns the user's withdrawal history, newest first.
func (s *WithdrawalService) ListForUser(userID uuid.UUID, params utils.PaginationParams) ([]models.Withdrawal, int64, error) {
	query := s.db.Model(&models.Withdrawal{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count withdrawals: %w", err)
	}

	var withdrawals []models.Withdrawal
	if err := utils.ApplyPagination(query.Order("created_at DESC"), params).Find(&withdrawals).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch withdrawals: %w", err)
	}
	return withdrawals, total, nil
}

// ListAll is the admin payout queue.
func (s *WithdrawalService) ListAll(status models.WithdrawalStatus, params utils.PaginationParams) ([]models.Withdrawal, int64, error) {
	query := s.db.Model(&models.Withdrawal{}).Preload("User")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count withdrawals: %w", err)
	}

	var withdrawals []models.Withdrawal
	if err := utils.ApplyPagination(query.Order("created_at"), params).Find(&withdrawals).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch withdrawals: %w", err)
	}
	return withdrawals, total, nil
}

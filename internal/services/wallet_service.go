// internal/services/wallet_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/repasso/repasso-backend/internal/models"
	"github.com/repasso/repasso-backend/internal/utils"
)

var ErrInsufficientBalance = errors.New("insufficient available balance")

// WalletService owns the append-only ledger. The wallet's
// available_balance is a materialized cache: every balance write happens
// in the same atomic unit as appending the matching WalletTransaction
// row, and never without one. Credit and Debit take the caller's
// *gorm.DB so ledger writes join the caller's transaction.
type WalletService struct {
	db *gorm.DB
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{db: db}
}

// GetOrCreate returns the user's wallet, creating an empty one on first
// use.
func (s *WalletService) GetOrCreate(userID uuid.UUID) (*models.Wallet, error) {
	return s.getOrCreateLocked(s.db, userID)
}

func (s *WalletService) getOrCreateLocked(db *gorm.DB, userID uuid.UUID) (*models.Wallet, error) {
	query := db
	// SQLite has no row locks; writers serialize on the database lock.
	if db.Dialector.Name() == "postgres" {
		query = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var wallet models.Wallet
	err := query.Where("user_id = ?", userID).First(&wallet).Error
	if err == gorm.ErrRecordNotFound {
		wallet = models.Wallet{
			UserID:           userID,
			AvailableBalance: decimal.Zero,
			PendingBalance:   decimal.Zero,
			TotalWithdrawn:   decimal.Zero,
		}
		if err := db.Create(&wallet).Error; err != nil {
			return nil, fmt.Errorf("failed to create wallet: %w", err)
		}
		return &wallet, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return &wallet, nil
}

// Credit appends a credit ledger line and raises the balance by the
// same amount, inside the caller's transaction.
func (s *WalletService) Credit(db *gorm.DB, userID uuid.UUID, amount decimal.Decimal, referenceType string, referenceID uuid.UUID, description string) error {
	if amount.IsNegative() || amount.IsZero() {
		return fmt.Errorf("credit amount must be positive, got %s", amount)
	}

	wallet, err := s.getOrCreateLocked(db, userID)
	if err != nil {
		return err
	}

	before := wallet.AvailableBalance
	after := before.Add(amount)

	line := &models.WalletTransaction{
		WalletID:      wallet.ID,
		Type:          models.WalletTransactionTypeCredit,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   description,
		ReferenceType: referenceType,
		ReferenceID:   &referenceID,
	}
	if err := db.Create(line).Error; err != nil {
		return fmt.Errorf("failed to append ledger line: %w", err)
	}

	if err := db.Model(wallet).Update("available_balance", after).Error; err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

// Debit appends a debit ledger line (negative amount) and lowers the
// balance, rejecting the write before any mutation when funds are
// insufficient.
func (s *WalletService) Debit(db *gorm.DB, userID uuid.UUID, amount decimal.Decimal, referenceType string, referenceID uuid.UUID, description string) error {
	if amount.IsNegative() || amount.IsZero() {
		return fmt.Errorf("debit amount must be positive, got %s", amount)
	}

	wallet, err := s.getOrCreateLocked(db, userID)
	if err != nil {
		return err
	}

	if wallet.AvailableBalance.LessThan(amount) {
		return ErrInsufficientBalance
	}

	before := wallet.AvailableBalance
	after := before.Sub(amount)

	line := &models.WalletTransaction{
		WalletID:      wallet.ID,
		Type:          models.WalletTransactionTypeDebit,
		Amount:        amount.Neg(),
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   description,
		ReferenceType: referenceType,
		ReferenceID:   &referenceID,
	}
	if err := db.Create(line).Error; err != nil {
		return fmt.Errorf("failed to append ledger line: %w", err)
	}

	if err := db.Model(wallet).Update("available_balance", after).Error; err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

// Statement returns the wallet's ledger lines, newest first.
func (s *WalletService) Statement(userID uuid.UUID, params utils.PaginationParams) ([]models.WalletTransaction, int64, error) {
	wallet, err := s.GetOrCreate(userID)
	if err != nil {
		return nil, 0, err
	}

	query := s.db.Model(&models.WalletTransaction{}).Where("wallet_id = ?", wallet.ID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger lines: %w", err)
	}

	var lines []models.WalletTransaction
	if err := utils.ApplyPagination(query.Order("created_at DESC"), params).Find(&lines).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch ledger lines: %w", err)
	}
	return lines, total, nil
}

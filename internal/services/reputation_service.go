// internal/services/reputation_service.go
package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/repasso/repasso-backend/internal/models"
)

// suspiciousLossThreshold flags a user once their cumulative lost
// disputes reach this count, regardless of the latest dispute's outcome.
const suspiciousLossThreshold = 3

// ReputationService maintains per-user trust counters. All mutating
// methods take the caller's *gorm.DB handle so reputation writes join
// the caller's atomic unit.
type ReputationService struct {
	db *gorm.DB
}

func NewReputationService(db *gorm.DB) *ReputationService {
	return &ReputationService{db: db}
}

func (s *ReputationService) Get(userID uuid.UUID) (*models.UserReputation, error) {
	return s.getOrCreate(s.db, userID)
}

func (s *ReputationService) getOrCreate(db *gorm.DB, userID uuid.UUID) (*models.UserReputation, error) {
	var rep models.UserReputation
	err := db.Where("user_id = ?", userID).First(&rep).Error
	if err == gorm.ErrRecordNotFound {
		rep = models.UserReputation{UserID: userID, TrustScore: 100}
		if err := db.Create(&rep).Error; err != nil {
			return nil, fmt.Errorf("failed to create reputation: %w", err)
		}
		return &rep, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reputation: %w", err)
	}
	return &rep, nil
}

func (s *ReputationService) RecordDisputeOpened(db *gorm.DB, userID uuid.UUID) error {
	rep, err := s.getOrCreate(db, userID)
	if err != nil {
		return err
	}
	rep.DisputesOpened++
	return db.Save(rep).Error
}

func (s *ReputationService) RecordDisputeWon(db *gorm.DB, userID uuid.UUID, scoreDelta int) error {
	rep, err := s.getOrCreate(db, userID)
	if err != nil {
		return err
	}
	rep.DisputesWon++
	rep.TrustScore += scoreDelta
	return db.Save(rep).Error
}

// RecordDisputeLost applies the loss counters and penalty. The caller
// chooses whether this particular loss flags the user immediately; the
// cumulative-loss threshold applies in either case.
func (s *ReputationService) RecordDisputeLost(db *gorm.DB, userID uuid.UUID, scorePenalty int, flagSuspicious bool) error {
	rep, err := s.getOrCreate(db, userID)
	if err != nil {
		return err
	}
	rep.DisputesLost++
	rep.TrustScore -= scorePenalty
	if flagSuspicious || rep.DisputesLost >= suspiciousLossThreshold {
		rep.IsSuspicious = true
	}
	return db.Save(rep).Error
}

// RecordCompletedSale bumps both parties' completion counters when a
// transaction settles in the seller's favor.
func (s *ReputationService) RecordCompletedSale(db *gorm.DB, sellerID, buyerID uuid.UUID) error {
	seller, err := s.getOrCreate(db, sellerID)
	if err != nil {
		return err
	}
	seller.CompletedSales++
	if err := db.Save(seller).Error; err != nil {
		return err
	}

	buyer, err := s.getOrCreate(db, buyerID)
	if err != nil {
		return err
	}
	buyer.CompletedPurchases++
	return db.Save(buyer).Error
}

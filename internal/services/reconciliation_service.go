// internal/services/reconciliation_service.go
package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/repasso/repasso-backend/internal/config"
	"github.com/repasso/repasso-backend/internal/gateway"
	"github.com/repasso/repasso-backend/internal/models"
	"github.com/repasso/repasso-backend/internal/monitoring"
)

// ReconcileResult summarises one sweep.
type ReconcileResult struct {
	Checked      int       `json:"checked"`
	Confirmed    int       `json:"confirmed"`
	Expired      int       `json:"expired"`
	Released     int       `json:"released"`
	StillPending int       `json:"stillPending"`
	Errors       int       `json:"errors"`
	CheckedAt    time.Time `json:"checkedAt"`
}

// ReconciliationService is the cron-driven safety net under the
// webhook. It re-derives the truth from stored deadlines and the
// gateway's authoritative charge state, driving stuck transactions
// through the same idempotent transitions the webhook uses. One bad
// transaction never aborts the batch.
type ReconciliationService struct {
	db           *gorm.DB
	config       *config.Config
	gateway      gateway.Gateway
	transactions *TransactionService
}

func NewReconciliationService(db *gorm.DB, cfg *config.Config, gw gateway.Gateway, transactions *TransactionService) *ReconciliationService {
	return &ReconciliationService{
		db:           db,
		config:       cfg,
		gateway:      gw,
		transactions: transactions,
	}
}

// Reconcile runs one sweep: expire elapsed confirmation windows, settle
// or expire pending payments, and release confirmed transactions whose
// no-dispute delay has passed.
func (s *ReconciliationService) Reconcile(ctx context.Context) *ReconcileResult {
	result := &ReconcileResult{CheckedAt: time.Now()}

	s.sweepPending(ctx, result)
	s.sweepDueReleases(result)

	logrus.WithFields(logrus.Fields{
		"checked":       result.Checked,
		"confirmed":     result.Confirmed,
		"expired":       result.Expired,
		"released":      result.Released,
		"still_pending": result.StillPending,
		"errors":        result.Errors,
	}).Info("Reconciliation sweep finished")
	return result
}

func (s *ReconciliationService) sweepPending(ctx context.Context, result *ReconcileResult) {
	now := time.Now()
	grace := now.Add(-s.config.Escrow.ReconcileGrace)
	lookback := now.Add(-s.config.Escrow.ReconcileLookback)

	var pending []models.Transaction
	err := s.db.
		Where("status = ? AND created_at < ? AND created_at > ?",
			models.TransactionStatusPending, grace, lookback).
		Order("created_at").
		Find(&pending).Error
	if err != nil {
		logrus.WithError(err).Error("Failed to load pending transactions for reconciliation")
		result.Errors++
		return
	}

	for i := range pending {
		txn := &pending[i]
		result.Checked++
		if err := s.reconcileOne(ctx, txn, result); err != nil {
			logrus.WithError(err).WithField("transaction_id", txn.ID).Error("Failed to reconcile transaction")
			monitoring.TrackReconciliation("error")
			result.Errors++
		}
	}
}

func (s *ReconciliationService) reconcileOne(ctx context.Context, txn *models.Transaction, result *ReconcileResult) error {
	now := time.Now()

	// Deadlines first: they hold even when the gateway is unreachable.
	if now.After(txn.ExpiresAt) {
		if !txn.SellerConfirmed() {
			applied, err := s.transactions.ExpireConfirmation(txn)
			if err != nil {
				return err
			}
			if applied {
				result.Expired++
				monitoring.TrackReconciliation("confirmation_expired")
			}
			return nil
		}

		applied, err := s.transactions.ExpirePayment(txn.ID)
		if err != nil {
			return err
		}
		if applied {
			result.Expired++
			monitoring.TrackReconciliation("payment_expired")
		}
		return nil
	}

	// Inside the payment window with no webhook yet: ask the gateway.
	if !txn.SellerConfirmed() || txn.PaymentID == "" {
		result.StillPending++
		monitoring.TrackReconciliation("still_pending")
		return nil
	}

	charge, err := s.gateway.GetChargeByReference(ctx, txn.ID.String())
	if err != nil {
		// Unknown state; the next sweep will retry.
		return err
	}
	if charge == nil {
		result.StillPending++
		monitoring.TrackReconciliation("still_pending")
		return nil
	}

	switch {
	case gateway.IsPaidStatus(charge.Status):
		applied, err := s.transactions.MarkPaid(txn.ID, charge.ID, "reconciliation")
		if err != nil {
			return err
		}
		if applied {
			result.Confirmed++
			monitoring.TrackReconciliation("confirmed")
		}

	case charge.Status == gateway.ChargeStatusOverdue:
		applied, err := s.transactions.ExpirePayment(txn.ID)
		if err != nil {
			return err
		}
		if applied {
			result.Expired++
			monitoring.TrackReconciliation("payment_expired")
		}

	case charge.Status == gateway.ChargeStatusRefunded:
		if _, err := s.transactions.MarkRefunded(txn.ID, "reconciliation"); err != nil {
			return err
		}
		monitoring.TrackReconciliation("refunded")

	case charge.Status == gateway.ChargeStatusDeleted:
		if _, err := s.transactions.CancelFromGateway(txn.ID); err != nil {
			return err
		}
		monitoring.TrackReconciliation("cancelled")

	default:
		result.StillPending++
		monitoring.TrackReconciliation("still_pending")
	}
	return nil
}

// sweepDueReleases settles confirmed transactions whose no-dispute
// delay has elapsed.
func (s *ReconciliationService) sweepDueReleases(result *ReconcileResult) {
	var due []models.Transaction
	err := s.db.
		Where("status = ? AND release_at IS NOT NULL AND release_at < ?",
			models.TransactionStatusConfirmed, time.Now()).
		Order("release_at").
		Find(&due).Error
	if err != nil {
		logrus.WithError(err).Error("Failed to load due releases")
		result.Errors++
		return
	}

	for i := range due {
		txn := &due[i]
		result.Checked++
		applied, err := s.transactions.Release(txn.ID)
		if err != nil {
			logrus.WithError(err).WithField("transaction_id", txn.ID).Error("Failed to release transaction")
			monitoring.TrackReconciliation("error")
			result.Errors++
			continue
		}
		if applied {
			result.Released++
			monitoring.TrackReconciliation("released")
		}
	}
}

// internal/services/services_test.go
package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/repasso/repasso-backend/internal/config"
	"github.com/repasso/repasso-backend/internal/gateway"
	"github.com/repasso/repasso-backend/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// One connection, or each pooled connection gets its own ":memory:".
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Ticket{},
		&models.Transaction{},
		&models.Dispute{},
		&models.DisputeEvidence{},
		&models.DisputeMessage{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.Withdrawal{},
		&models.UserReputation{},
		&models.AuditLog{},
		&models.AdminNotification{},
	))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Escrow: config.EscrowConfig{
			PlatformFeePercent: 10,
			ReservationWindow:  15 * time.Minute,
			PaymentWindow:      5 * time.Minute,
			ReleaseDelay:       24 * time.Hour,
			ReconcileGrace:     2 * time.Minute,
			ReconcileLookback:  48 * time.Hour,
			MinimumWithdrawal:  20,
			CronToken:          "cron-secret",
		},
	}
}

// fakeGateway is an in-memory stand-in for the payment provider. Charges
// are keyed by externalReference, and individual calls can be scripted to
// fail with gateway.ErrUnavailable.
type fakeGateway struct {
	mu           sync.Mutex
	nextCharge   int
	charges      map[string]*gateway.Charge
	refunded     []string
	failCustomer bool
	failCharge   bool
	failRefs     map[string]bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		charges:  make(map[string]*gateway.Charge),
		failRefs: make(map[string]bool),
	}
}

func (g *fakeGateway) CreateOrFindCustomer(ctx context.Context, req gateway.CustomerRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCustomer {
		return "", gateway.ErrUnavailable
	}
	return "cus_" + req.CPF, nil
}

func (g *fakeGateway) CreateCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCharge {
		return nil, gateway.ErrUnavailable
	}
	g.nextCharge++
	charge := &gateway.Charge{
		ID:                fmt.Sprintf("pay_%06d", g.nextCharge),
		Status:            gateway.ChargeStatusPending,
		Value:             req.Value,
		BillingType:       req.BillingType,
		ExternalReference: req.ExternalReference,
		InvoiceURL:        "https://sandbox.asaas.com/i/" + fmt.Sprint(g.nextCharge),
	}
	g.charges[req.ExternalReference] = charge
	return charge, nil
}

func (g *fakeGateway) GetChargeByReference(ctx context.Context, reference string) (*gateway.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failRefs[reference] {
		return nil, gateway.ErrUnavailable
	}
	return g.charges[reference], nil
}

func (g *fakeGateway) GetPixQRCode(ctx context.Context, chargeID string) (string, error) {
	return "00020126580014br.gov.bcb.pix" + chargeID, nil
}

func (g *fakeGateway) Refund(ctx context.Context, chargeID string, amount *decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunded = append(g.refunded, chargeID)
	return nil
}

func (g *fakeGateway) setChargeStatus(reference, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if charge, ok := g.charges[reference]; ok {
		charge.Status = status
	}
}

func (g *fakeGateway) refundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunded)
}

// testEnv wires the full service graph against an in-memory database.
type testEnv struct {
	db             *gorm.DB
	cfg            *config.Config
	gateway        *fakeGateway
	wallets        *WalletService
	reputation     *ReputationService
	notifications  *NotificationService
	transactions   *TransactionService
	payments       *PaymentService
	disputes       *DisputeService
	withdrawals    *WithdrawalService
	reconciliation *ReconciliationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		db:      newTestDB(t),
		cfg:     testConfig(),
		gateway: newFakeGateway(),
	}
	env.wallets = NewWalletService(env.db)
	env.reputation = NewReputationService(env.db)
	env.notifications = NewNotificationService(env.db, env.cfg)
	env.transactions = NewTransactionService(env.db, env.cfg, env.gateway, env.wallets, env.reputation, env.notifications)
	env.payments = NewPaymentService(env.db, env.cfg, env.gateway, env.transactions)
	env.disputes = NewDisputeService(env.db, env.transactions, env.payments, env.reputation, env.notifications)
	env.withdrawals = NewWithdrawalService(env.db, env.cfg, env.wallets, env.notifications)
	env.reconciliation = NewReconciliationService(env.db, env.cfg, env.gateway, env.transactions)
	return env
}

func (e *testEnv) createUser(t *testing.T, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:          username,
		Email:             username + "@example.com",
		FullName:          "Usuário " + username,
		CPF:               "52998224725",
		Phone:             "5511999990000",
		UserType:          models.UserTypeUser,
		VerificationLevel: models.VerificationLevelVerified,
		Status:            models.UserStatusActive,
	}
	require.NoError(t, user.SetPassword("Senha@Forte1"))
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) createTicket(t *testing.T, seller *models.User, price string) *models.Ticket {
	t.Helper()

	ticket := &models.Ticket{
		SellerID:  seller.ID,
		EventName: "Festival de Verão",
		EventDate: time.Now().Add(30 * 24 * time.Hour),
		Venue:     "Allianz Parque",
		Sector:    "Pista Premium",
		Price:     decimal.RequireFromString(price),
		Status:    models.TicketStatusAvailable,
	}
	require.NoError(t, e.db.Create(ticket).Error)
	return ticket
}

// paidTransaction drives a fresh sale to paid: reserve, seller confirm
// (creating the gateway charge) and payment confirmation.
func (e *testEnv) paidTransaction(t *testing.T, buyer, seller *models.User, price string) *models.Transaction {
	t.Helper()

	ticket := e.createTicket(t, seller, price)
	txn, err := e.transactions.Reserve(buyer.ID, ticket.ID, models.BillingTypePix)
	require.NoError(t, err)

	_, err = e.transactions.SellerConfirm(context.Background(), seller.ID, txn.ID)
	require.NoError(t, err)

	applied, err := e.transactions.MarkPaid(txn.ID, "", "webhook")
	require.NoError(t, err)
	require.True(t, applied)

	return e.reloadTransaction(t, txn.ID)
}

func (e *testEnv) reloadTransaction(t *testing.T, id uuid.UUID) *models.Transaction {
	t.Helper()
	txn, err := e.transactions.GetByID(id)
	require.NoError(t, err)
	return txn
}

func (e *testEnv) reloadTicket(t *testing.T, id uuid.UUID) *models.Ticket {
	t.Helper()
	var ticket models.Ticket
	require.NoError(t, e.db.First(&ticket, "id = ?", id).Error)
	return &ticket
}

func (e *testEnv) setExpiresAt(t *testing.T, txnID uuid.UUID, at time.Time) {
	t.Helper()
	require.NoError(t, e.db.Model(&models.Transaction{}).
		Where("id = ?", txnID).Update("expires_at", at).Error)
}

func (e *testEnv) setCreatedAt(t *testing.T, txnID uuid.UUID, at time.Time) {
	t.Helper()
	require.NoError(t, e.db.Model(&models.Transaction{}).
		Where("id = ?", txnID).Update("created_at", at).Error)
}

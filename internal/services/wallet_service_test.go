// internal/services/wallet_service_test.go
package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repasso/repasso-backend/internal/models"
	"github.com/repasso/repasso-backend/internal/utils"
)

func TestWalletGetOrCreate(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "carteira-nova")

	wallet, err := env.wallets.GetOrCreate(user.ID)
	require.NoError(t, err)
	assert.True(t, wallet.AvailableBalance.IsZero())

	again, err := env.wallets.GetOrCreate(user.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet.ID, again.ID)
}

func TestWalletLedgerChain(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "carteira")
	ref := uuid.New()

	require.NoError(t, env.wallets.Credit(env.db, user.ID, dec("100.00"), "transaction", ref, "Ticket sale payout"))
	require.NoError(t, env.wallets.Debit(env.db, user.ID, dec("30.00"), "withdrawal", ref, "Saque via PIX"))
	require.NoError(t, env.wallets.Credit(env.db, user.ID, dec("5.00"), "withdrawal_rejected", ref, "Estorno"))

	wallet, err := env.wallets.GetOrCreate(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "75.00", wallet.AvailableBalance.StringFixed(2))

	var lines []models.WalletTransaction
	require.NoError(t, env.db.Where("wallet_id = ?", wallet.ID).Order("created_at").Find(&lines).Error)
	require.Len(t, lines, 3)

	// Every line chains: after = before + signed amount, and the
	// materialized balance equals the last line's after.
	for _, line := range lines {
		assert.True(t, line.BalanceAfter.Equal(line.BalanceBefore.Add(line.Amount)),
			"line %s breaks the chain", line.ID)
	}
	assert.Equal(t, "-30.00", lines[1].Amount.StringFixed(2))
	assert.Equal(t, models.WalletTransactionTypeDebit, lines[1].Type)
	assert.True(t, wallet.AvailableBalance.Equal(lines[2].BalanceAfter))
}

func TestWalletDebitInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "sem-saldo")
	ref := uuid.New()

	require.NoError(t, env.wallets.Credit(env.db, user.ID, dec("10.00"), "transaction", ref, "payout"))

	err := env.wallets.Debit(env.db, user.ID, dec("10.01"), "withdrawal", ref, "Saque via PIX")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// The failed debit left no ledger line behind.
	wallet, err := env.wallets.GetOrCreate(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", wallet.AvailableBalance.StringFixed(2))

	var lines int64
	env.db.Model(&models.WalletTransaction{}).Where("wallet_id = ?", wallet.ID).Count(&lines)
	assert.EqualValues(t, 1, lines)
}

func TestWalletRejectsNonPositiveAmounts(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "valores")
	ref := uuid.New()

	assert.Error(t, env.wallets.Credit(env.db, user.ID, dec("0"), "transaction", ref, ""))
	assert.Error(t, env.wallets.Credit(env.db, user.ID, dec("-1.00"), "transaction", ref, ""))
	assert.Error(t, env.wallets.Debit(env.db, user.ID, dec("0"), "withdrawal", ref, ""))
	assert.Error(t, env.wallets.Debit(env.db, user.ID, dec("-1.00"), "withdrawal", ref, ""))
}

func TestWalletStatementNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "extrato")
	ref := uuid.New()

	require.NoError(t, env.wallets.Credit(env.db, user.ID, dec("50.00"), "transaction", ref, "primeira"))
	require.NoError(t, env.wallets.Credit(env.db, user.ID, dec("20.00"), "transaction", ref, "segunda"))

	lines, total, err := env.wallets.Statement(user.ID, utils.PaginationParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, lines, 2)
	assert.Equal(t, "70.00", lines[0].BalanceAfter.StringFixed(2))
}

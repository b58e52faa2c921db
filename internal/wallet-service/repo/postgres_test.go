package repo

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porcupine/aviator-platform-poc/internal/shared/db"
	"github.com/porcupine/aviator-platform-poc/internal/wallet-service/commission"
)

// Testes de integração do ledger: rodam só com TEST_POSTGRES_DSN apontando
// para um banco descartável.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN não definido")
	}

	pg, err := db.ConnectPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { pg.Close() })

	_, err = pg.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			user_id       TEXT PRIMARY KEY,
			balance_cents BIGINT NOT NULL CHECK (balance_cents >= 0)
		);
		CREATE TABLE IF NOT EXISTS bets (
			id           UUID PRIMARY KEY,
			user_id      TEXT NOT NULL,
			stake_cents  BIGINT NOT NULL CHECK (stake_cents > 0),
			outcome      TEXT NOT NULL DEFAULT 'pending',
			payout_cents BIGINT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			settled_at   TIMESTAMPTZ
		);`)
	require.NoError(t, err)
	return pg
}

func newAccount(t *testing.T, pg *sql.DB, balanceCents int64) string {
	t.Helper()
	userID := "u-" + uuid.NewString()
	_, err := pg.Exec(`INSERT INTO accounts (user_id, balance_cents) VALUES ($1,$2)`, userID, balanceCents)
	require.NoError(t, err)
	return userID
}

func balanceOf(t *testing.T, r *Postgres, userID string) int64 {
	t.Helper()
	acc, err := r.GetAccount(context.Background(), userID)
	require.NoError(t, err)
	return acc.BalanceCents
}

func TestPlaceBetDebitsAndCreatesRecord(t *testing.T) {
	pg := testDB(t)
	r := NewPostgres(pg)
	ctx := context.Background()

	userID := newAccount(t, pg, 50000)

	bet, err := r.PlaceBet(ctx, userID, 20000)
	require.NoError(t, err)
	assert.Equal(t, commission.OutcomePending, bet.Outcome)
	assert.Equal(t, int64(20000), bet.StakeCents)
	assert.Equal(t, int64(30000), balanceOf(t, r, userID))

	got, err := r.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
	assert.Nil(t, got.PayoutCents)
	assert.Nil(t, got.SettledAt)
}

func TestPlaceBetRejectsWithoutSideEffects(t *testing.T) {
	pg := testDB(t)
	r := NewPostgres(pg)
	ctx := context.Background()

	userID := newAccount(t, pg, 500)

	_, err := r.PlaceBet(ctx, userID, 501)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(500), balanceOf(t, r, userID))

	bets, err := r.History(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, bets)

	_, err = r.PlaceBet(ctx, "u-ghost-"+uuid.NewString(), 100)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestConcurrentBetsNeverOverspend(t *testing.T) {
	pg := testDB(t)
	r := NewPostgres(pg)
	ctx := context.Background()

	// 10 apostas de 100 contra saldo 500: exatamente 5 entram, saldo zera
	userID := newAccount(t, pg, 500)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.PlaceBet(ctx, userID, 100)
		}(i)
	}
	wg.Wait()

	var oks, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			oks++
		case err == ErrInsufficientFunds:
			insufficient++
		default:
			t.Fatalf("erro inesperado: %v", err)
		}
	}
	assert.Equal(t, 5, oks)
	assert.Equal(t, 5, insufficient)
	assert.Equal(t, int64(0), balanceOf(t, r, userID))

	bets, err := r.History(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, bets, 5)
}

func TestConcurrentBetsSummingToBalanceAllSucceed(t *testing.T) {
	pg := testDB(t)
	r := NewPostgres(pg)
	ctx := context.Background()

	stakes := []int64{100, 150, 250}
	userID := newAccount(t, pg, 500)

	var wg sync.WaitGroup
	errs := make([]error, len(stakes))
	for i, s := range stakes {
		wg.Add(1)
		go func(i int, s int64) {
			defer wg.Done()
			_, errs[i] = r.PlaceBet(ctx, userID, s)
		}(i, s)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(0), balanceOf(t, r, userID))
}

func TestSettleBetTransitionsOnce(t *testing.T) {
	pg := testDB(t)
	r := NewPostgres(pg)
	ctx := context.Background()

	userID := newAccount(t, pg, 10000)
	bet, err := r.PlaceBet(ctx, userID, 10000)
	require.NoError(t, err)

	require.NoError(t, r.SettleBet(ctx, bet.ID, commission.OutcomeWin, 270000))

	got, err := r.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, commission.OutcomeWin, got.Outcome)
	require.NotNil(t, got.PayoutCents)
	assert.Equal(t, int64(270000), *got.PayoutCents)
	assert.NotNil(t, got.SettledAt)
	// stake permanece o gravado na criação
	assert.Equal(t, int64(10000), got.StakeCents)

	// segunda liquidação não sobrescreve
	err = r.SettleBet(ctx, bet.ID, commission.OutcomeLoss, 0)
	require.ErrorIs(t, err, ErrAlreadySettled)

	err = r.SettleBet(ctx, uuid.NewString(), commission.OutcomeWin, 1)
	require.ErrorIs(t, err, ErrBetNotFound)
}

func TestHistoryOrderedNewestFirst(t *testing.T) {
	pg := testDB(t)
	r := NewPostgres(pg)
	ctx := context.Background()

	userID := newAccount(t, pg, 600)
	for _, s := range []int64{100, 200, 300} {
		_, err := r.PlaceBet(ctx, userID, s)
		require.NoError(t, err)
	}

	first, err := r.History(ctx, userID)
	require.NoError(t, err)
	require.Len(t, first, 3)
	for i := 1; i < len(first); i++ {
		assert.False(t, first[i].CreatedAt.After(first[i-1].CreatedAt))
	}

	second, err := r.History(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

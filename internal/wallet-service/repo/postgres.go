package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/porcupine/aviator-platform-poc/internal/shared/db"
	"github.com/porcupine/aviator-platform-poc/internal/wallet-service/commission"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBetNotFound       = errors.New("bet not found")
	ErrAlreadySettled    = errors.New("bet already settled")
)

// Postgres implementa o ledger de contas e apostas sobre o Postgres
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório do ledger
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// GetAccount retorna a conta do usuário
func (p *Postgres) GetAccount(ctx context.Context, userID string) (*Account, error) {
	acc := Account{UserID: userID}
	err := p.db.QueryRowContext(ctx,
		`SELECT balance_cents FROM accounts WHERE user_id=$1`, userID).Scan(&acc.BalanceCents)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// PlaceBet debita o stake e cria a aposta pendente numa única unidade atômica.
// A linha da conta é travada com FOR UPDATE: duas apostas concorrentes do mesmo
// usuário serializam e a segunda enxerga o saldo já debitado pela primeira.
// Contas diferentes não se bloqueiam.
func (p *Postgres) PlaceBet(ctx context.Context, userID string, stakeCents int64) (*Bet, error) {
	bet := &Bet{
		ID:         uuid.NewString(),
		UserID:     userID,
		StakeCents: stakeCents,
		Outcome:    commission.OutcomePending,
	}

	err := db.InTx(ctx, p.db, func(tx *sql.Tx) error {
		var balance int64
		err := tx.QueryRowContext(ctx,
			`SELECT balance_cents FROM accounts WHERE user_id=$1 FOR UPDATE`, userID).Scan(&balance)
		if err == sql.ErrNoRows {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}

		if stakeCents > balance {
			return ErrInsufficientFunds
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET balance_cents = balance_cents - $1 WHERE user_id=$2`,
			stakeCents, userID); err != nil {
			return err
		}

		// débito e registro da aposta fazem parte da mesma transação:
		// nunca existe débito sem aposta correspondente, nem o contrário
		return tx.QueryRowContext(ctx, `
			INSERT INTO bets (id, user_id, stake_cents, outcome, created_at)
			VALUES ($1,$2,$3,'pending',NOW())
			RETURNING created_at`,
			bet.ID, userID, stakeCents).Scan(&bet.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return bet, nil
}

// GetBet retorna uma aposta pelo id
func (p *Postgres) GetBet(ctx context.Context, betID string) (*Bet, error) {
	var (
		bet       Bet
		payout    sql.NullInt64
		settledAt sql.NullTime
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, stake_cents, outcome, payout_cents, created_at, settled_at
		FROM bets WHERE id=$1`, betID).
		Scan(&bet.ID, &bet.UserID, &bet.StakeCents, &bet.Outcome, &payout, &bet.CreatedAt, &settledAt)
	if err == sql.ErrNoRows {
		return nil, ErrBetNotFound
	}
	if err != nil {
		return nil, err
	}
	if payout.Valid {
		bet.PayoutCents = &payout.Int64
	}
	if settledAt.Valid {
		bet.SettledAt = &settledAt.Time
	}
	return &bet, nil
}

// History lista as apostas do usuário, da mais recente para a mais antiga
func (p *Postgres) History(ctx context.Context, userID string) ([]Bet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, stake_cents, outcome, payout_cents, created_at, settled_at
		FROM bets WHERE user_id=$1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bets := []Bet{}
	for rows.Next() {
		var (
			bet       Bet
			payout    sql.NullInt64
			settledAt sql.NullTime
		)
		if err := rows.Scan(&bet.ID, &bet.UserID, &bet.StakeCents, &bet.Outcome,
			&payout, &bet.CreatedAt, &settledAt); err != nil {
			return nil, err
		}
		if payout.Valid {
			bet.PayoutCents = &payout.Int64
		}
		if settledAt.Valid {
			bet.SettledAt = &settledAt.Time
		}
		bets = append(bets, bet)
	}
	return bets, rows.Err()
}

// SettleBet efetua a transição única pending -> win|loss e grava o payout.
// Reentregas do evento de liquidação caem em ErrAlreadySettled.
func (p *Postgres) SettleBet(ctx context.Context, betID string, outcome commission.Outcome, payoutCents int64) error {
	return db.InTx(ctx, p.db, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT outcome FROM bets WHERE id=$1 FOR UPDATE`, betID).Scan(&current)
		if err == sql.ErrNoRows {
			return ErrBetNotFound
		}
		if err != nil {
			return err
		}

		if current != string(commission.OutcomePending) {
			return ErrAlreadySettled
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE bets SET outcome=$1, payout_cents=$2, settled_at=NOW() WHERE id=$3`,
			string(outcome), payoutCents, betID)
		return err
	})
}

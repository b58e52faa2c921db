package repo

import (
	"time"

	"github.com/porcupine/aviator-platform-poc/internal/wallet-service/commission"
)

// Account guarda o saldo autoritativo de um usuário.
type Account struct {
	UserID       string
	BalanceCents int64
}

// Bet é o registro persistido de uma aposta.
// O stake é imutável após a criação; só o outcome transita, uma única vez,
// de pending para win ou loss.
type Bet struct {
	ID          string
	UserID      string
	StakeCents  int64
	Outcome     commission.Outcome
	PayoutCents *int64
	CreatedAt   time.Time
	SettledAt   *time.Time
}

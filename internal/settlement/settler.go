package settlement

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/porcupine/aviator-platform-poc/internal/shared/metrics"
	"github.com/porcupine/aviator-platform-poc/internal/wallet-service/commission"
	"github.com/porcupine/aviator-platform-poc/internal/wallet-service/repo"
	"github.com/porcupine/aviator-platform-poc/pkg/contracts/events"
)

// Repo é o subconjunto do ledger usado na liquidação
type Repo interface {
	GetBet(ctx context.Context, betID string) (*repo.Bet, error)
	SettleBet(ctx context.Context, betID string, outcome commission.Outcome, payoutCents int64) error
}

// Publisher publica o resultado da liquidação para consumidores downstream
type Publisher interface {
	PublishBetResolved(ctx context.Context, e events.BetResolved) error
}

// Settler aplica o resultado externo de uma rodada ao registro da aposta:
// transição única pending -> win|loss, com o payout calculado pela política
// de comissão sobre o stake imutável gravado na criação.
type Settler struct {
	log    *zap.Logger
	repo   Repo
	policy commission.Policy
	publ   Publisher
}

func New(log *zap.Logger, r Repo, policy commission.Policy, p Publisher) *Settler {
	return &Settler{log: log, repo: r, policy: policy, publ: p}
}

// Process liquida uma aposta a partir do evento do motor do jogo.
// Reentrega de evento já liquidado não é erro.
func (s *Settler) Process(ctx context.Context, e events.BetSettled) error {
	outcome := commission.Outcome(e.Outcome)
	if outcome != commission.OutcomeWin {
		// qualquer resultado que não seja win conta como derrota
		outcome = commission.OutcomeLoss
	}

	bet, err := s.repo.GetBet(ctx, e.BetID)
	if err != nil {
		return err
	}

	payout := s.policy.Settle(bet.StakeCents, outcome)

	if err := s.repo.SettleBet(ctx, e.BetID, outcome, payout); err != nil {
		if errors.Is(err, repo.ErrAlreadySettled) {
			s.log.Debug("bet already settled", zap.String("betId", e.BetID))
			return nil
		}
		return err
	}

	metrics.BetsSettled.WithLabelValues(string(outcome)).Inc()

	if s.publ != nil {
		if err := s.publ.PublishBetResolved(ctx, events.BetResolved{
			BetID:       e.BetID,
			UserID:      bet.UserID,
			Outcome:     string(outcome),
			PayoutCents: payout,
			Ts:          time.Now(),
		}); err != nil {
			s.log.Warn("publish bet_resolved", zap.String("betId", e.BetID), zap.Error(err))
		}
	}
	return nil
}

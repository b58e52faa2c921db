package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/porcupine/aviator-platform-poc/internal/wallet-service/commission"
	"github.com/porcupine/aviator-platform-poc/internal/wallet-service/repo"
	"github.com/porcupine/aviator-platform-poc/pkg/contracts/events"
)

type fakeRepo struct {
	bets map[string]*repo.Bet
}

func (f *fakeRepo) GetBet(_ context.Context, betID string) (*repo.Bet, error) {
	b, ok := f.bets[betID]
	if !ok {
		return nil, repo.ErrBetNotFound
	}
	return b, nil
}

func (f *fakeRepo) SettleBet(_ context.Context, betID string, outcome commission.Outcome, payoutCents int64) error {
	b, ok := f.bets[betID]
	if !ok {
		return repo.ErrBetNotFound
	}
	if b.Outcome != commission.OutcomePending {
		return repo.ErrAlreadySettled
	}
	now := time.Now()
	b.Outcome = outcome
	b.PayoutCents = &payoutCents
	b.SettledAt = &now
	return nil
}

type capturePublisher struct {
	resolved []events.BetResolved
}

func (p *capturePublisher) PublishBetResolved(_ context.Context, e events.BetResolved) error {
	p.resolved = append(p.resolved, e)
	return nil
}

func pendingBet(id, userID string, stakeCents int64) *repo.Bet {
	return &repo.Bet{ID: id, UserID: userID, StakeCents: stakeCents, Outcome: commission.OutcomePending, CreatedAt: time.Now()}
}

func newSettler(r Repo, p Publisher) *Settler {
	return New(zap.NewNop(), r, commission.New(300000, 10, 30), p)
}

func TestProcessWinSettlesWithCappedPayout(t *testing.T) {
	fr := &fakeRepo{bets: map[string]*repo.Bet{"b1": pendingBet("b1", "u1", 5000)}}
	publ := &capturePublisher{}
	s := newSettler(fr, publ)

	err := s.Process(context.Background(), events.BetSettled{BetID: "b1", Outcome: "win"})
	require.NoError(t, err)

	bet := fr.bets["b1"]
	assert.Equal(t, commission.OutcomeWin, bet.Outcome)
	require.NotNil(t, bet.PayoutCents)
	assert.Equal(t, int64(270000), *bet.PayoutCents) // teto menos comissão, não depende do stake

	require.Len(t, publ.resolved, 1)
	assert.Equal(t, "u1", publ.resolved[0].UserID)
	assert.Equal(t, int64(270000), publ.resolved[0].PayoutCents)
}

func TestProcessLossSettlesFromStake(t *testing.T) {
	fr := &fakeRepo{bets: map[string]*repo.Bet{"b1": pendingBet("b1", "u1", 1000)}}
	s := newSettler(fr, &capturePublisher{})

	err := s.Process(context.Background(), events.BetSettled{BetID: "b1", Outcome: "loss"})
	require.NoError(t, err)

	bet := fr.bets["b1"]
	assert.Equal(t, commission.OutcomeLoss, bet.Outcome)
	require.NotNil(t, bet.PayoutCents)
	assert.Equal(t, int64(700), *bet.PayoutCents)
}

func TestProcessUnknownOutcomeCountsAsLoss(t *testing.T) {
	fr := &fakeRepo{bets: map[string]*repo.Bet{"b1": pendingBet("b1", "u1", 1000)}}
	s := newSettler(fr, &capturePublisher{})

	err := s.Process(context.Background(), events.BetSettled{BetID: "b1", Outcome: "crashed"})
	require.NoError(t, err)
	assert.Equal(t, commission.OutcomeLoss, fr.bets["b1"].Outcome)
}

func TestProcessRedeliveryIsNoop(t *testing.T) {
	fr := &fakeRepo{bets: map[string]*repo.Bet{"b1": pendingBet("b1", "u1", 1000)}}
	publ := &capturePublisher{}
	s := newSettler(fr, publ)

	require.NoError(t, s.Process(context.Background(), events.BetSettled{BetID: "b1", Outcome: "win"}))
	firstPayout := *fr.bets["b1"].PayoutCents

	// reentrega com outro resultado não muda nada e não é erro
	require.NoError(t, s.Process(context.Background(), events.BetSettled{BetID: "b1", Outcome: "loss"}))
	assert.Equal(t, commission.OutcomeWin, fr.bets["b1"].Outcome)
	assert.Equal(t, firstPayout, *fr.bets["b1"].PayoutCents)
	assert.Len(t, publ.resolved, 1)
}

func TestProcessUnknownBet(t *testing.T) {
	s := newSettler(&fakeRepo{bets: map[string]*repo.Bet{}}, &capturePublisher{})

	err := s.Process(context.Background(), events.BetSettled{BetID: "nope", Outcome: "win"})
	require.ErrorIs(t, err, repo.ErrBetNotFound)
}

package commission

// Outcome enumera os resultados possíveis de uma aposta.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeWin     Outcome = "win"
	OutcomeLoss    Outcome = "loss"
)

// Policy calcula o valor liquidado de uma aposta em centavos.
// Pura: sem I/O, sem estado mutável; os percentuais e o teto vêm da config.
type Policy struct {
	MaxWinCents int64
	WinPct      int64
	LossPct     int64
}

func New(maxWinCents, winPct, lossPct int64) Policy {
	return Policy{MaxWinCents: maxWinCents, WinPct: winPct, LossPct: lossPct}
}

// Settle retorna o payout final em centavos.
// Vitória paga o teto fixo menos a comissão sobre o teto — independe do stake.
// Qualquer resultado que não seja win é tratado como derrota.
func (p Policy) Settle(stakeCents int64, outcome Outcome) int64 {
	if outcome == OutcomeWin {
		fee := p.MaxWinCents * p.WinPct / 100
		return p.MaxWinCents - fee
	}
	fee := stakeCents * p.LossPct / 100
	return stakeCents - fee
}

package events

import "time"

// Evento emitido pelo motor do jogo (externo) quando uma rodada fecha.
// Consumido pelo settlement-worker para resolver o resultado das apostas.
type BetSettled struct {
	BetID   string    `json:"bet_id"`
	RoundID string    `json:"round_id,omitempty"`
	Outcome string    `json:"outcome"` // "win" | "loss"; qualquer outro valor vira loss
	Ts      time.Time `json:"ts"`
}

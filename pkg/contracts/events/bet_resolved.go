package events

import "time"

// Evento emitido pelo settlement-worker após gravar o resultado de uma aposta.
type BetResolved struct {
	BetID       string    `json:"betId"`
	UserID      string    `json:"userId"`
	Outcome     string    `json:"outcome"` // "win" | "loss"
	PayoutCents int64     `json:"payout_cents"`
	Ts          time.Time `json:"ts"`
}

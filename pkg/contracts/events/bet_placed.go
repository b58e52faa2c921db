package events

// Evento publicado pelo wallet-service após o débito e a criação da aposta
type BetPlaced struct {
	BetID      string `json:"bet_id"`
	UserID     string `json:"user_id"`
	StakeCents int64  `json:"stake_cents"`
	Outcome    string `json:"outcome"` // sempre "pending" na publicação
	TsUnixMs   int64  `json:"ts_unix_ms"`
}

package topics

const (
	// Bets
	BetPlaced   = "bet_placed"
	BetSettled  = "bet_settled"
	BetResolved = "bet_resolved"

	// DLQs
	BetSettledDLQ = "bet_settled_dlq"
)

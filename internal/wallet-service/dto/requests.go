package dto

type PlaceBetRequest struct {
	StakeCents int64 `json:"stake_cents"`
}

type DepositRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	AmountCents int64  `json:"amount_cents"`
}

type WithdrawRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	AmountCents int64  `json:"amount_cents"`
	Outcome     string `json:"outcome"` // "win" | "loss" — asserção do cliente, não do ledger
}

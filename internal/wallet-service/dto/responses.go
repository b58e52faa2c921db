package dto

import "time"

type PlaceBetResponse struct {
	BetID  string `json:"betId"`
	Status string `json:"status"` // "pending"
}

type BetResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	StakeCents  int64      `json:"stake_cents"`
	Outcome     string     `json:"outcome"`
	PayoutCents *int64     `json:"payout_cents,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
}

type ProfileResponse struct {
	UID string `json:"uid"`
}

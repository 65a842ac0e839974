package model

import "time"

// BillingEntry records one completed token purchase. Entries are append-only
// and listed in reverse-chronological order.
type BillingEntry struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Tokens      int64     `json:"tokens"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

// TokenPackage is one purchasable bundle of tokens with a fixed price.
type TokenPackage struct {
	Tokens      int64  `json:"tokens"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

package model

import (
	"encoding/json"
	"time"
)

// Nonce is a single-use form token. A nonce is destroyed on its first
// consumption attempt whether or not it is still valid.
type Nonce struct {
	ID        string
	ExpiresAt time.Time
}

// Donation is one form submission. It lives for the duration of a single
// request and is never persisted as-is.
type Donation struct {
	NonceID   string
	RawAmount string // decimal string in whole currency units, e.g. "12.50"
	Email     string
	CardToken string
	ClientIP  string
	Comment   string
}

// Receipt is the persisted record of a successful charge, keyed by the
// processor's charge token. Write-once, never updated.
type Receipt struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	AmountCents int64           `json:"amount_cents"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Comment     string          `json:"comment,omitempty"`
	ClientIP    string          `json:"client_ip"`
	Raw         json.RawMessage `json:"raw,omitempty"` // full processor payload for reconciliation
	CreatedAt   time.Time       `json:"created_at"`
}

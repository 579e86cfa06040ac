package dto

import (
	"time"

	"github.com/escrowd/escrowd/internal/usecase"
)

// LedgerMetadata describes this ledger to connecting clients.
type LedgerMetadata struct {
	BaseURI   string `json:"base_uri"`
	Precision int    `json:"precision"`
	Scale     int    `json:"scale"`
	// ConditionSignPublicKey is the base64url ed25519 key notifications are
	// signed with, when signing is configured.
	ConditionSignPublicKey string `json:"condition_sign_public_key,omitempty"`
}

// ConsistencyResponse reports the ledger-wide conservation check.
type ConsistencyResponse struct {
	BalanceTotal string    `json:"balance_total"`
	EntryTotal   string    `json:"entry_total"`
	Consistent   bool      `json:"consistent"`
	CheckedAt    time.Time `json:"checked_at"`
}

// ConsistencyFromResult converts the use case result to a response.
func ConsistencyFromResult(r *usecase.ConsistencyResult) *ConsistencyResponse {
	return &ConsistencyResponse{
		BalanceTotal: r.BalanceTotal.String(),
		EntryTotal:   r.EntryTotal.String(),
		Consistent:   r.Consistent,
		CheckedAt:    r.CheckedAt,
	}
}

package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/escrowd/escrowd/internal/domain"
)

// EntryResource represents a balance movement in API responses.
type EntryResource struct {
	ID              string          `json:"id"`
	Account         string          `json:"account"`
	TransferID      string          `json:"transfer_id"`
	Amount          decimal.Decimal `json:"amount"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	CurrentBalance  decimal.Decimal `json:"current_balance"`
	CreatedAt       time.Time       `json:"created_at"`
}

// EntryFromDomain converts a domain entry to a response.
func EntryFromDomain(e *domain.Entry) *EntryResource {
	return &EntryResource{
		ID:              e.ID,
		Account:         e.Account,
		TransferID:      e.TransferID,
		Amount:          e.Amount,
		PreviousBalance: e.PreviousBalance,
		CurrentBalance:  e.CurrentBalance,
		CreatedAt:       e.CreatedAt,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.Entry) []*EntryResource {
	result := make([]*EntryResource, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

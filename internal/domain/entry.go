package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry records a single signed balance movement on one account, produced by
// a transfer transition (hold, release, or settlement).
type Entry struct {
	ID              string
	Account         string
	TransferID      string
	Amount          decimal.Decimal
	PreviousBalance decimal.Decimal
	CurrentBalance  decimal.Decimal
	CreatedAt       time.Time
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// HoldAccountName is the ledger-internal account that carries escrowed funds
// between a transfer's prepare and its execution or rejection.
const HoldAccountName = "hold"

// Account represents a ledger account that can hold a balance.
type Account struct {
	Name                  string
	Balance               decimal.Decimal
	MinimumAllowedBalance decimal.Decimal
	// NoBalanceFloor marks accounts whose minimum balance is unbounded
	// (admin and system accounts). When set, MinimumAllowedBalance is ignored.
	NoBalanceFloor bool
	IsAdmin        bool
	PasswordHash   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ValidateAdjustment checks whether applying delta keeps the balance at or
// above the account's floor.
func (a *Account) ValidateAdjustment(delta decimal.Decimal) error {
	if a.NoBalanceFloor {
		return nil
	}

	newBalance := a.Balance.Add(delta)
	if newBalance.LessThan(a.MinimumAllowedBalance) {
		return ErrInsufficientFunds
	}

	return nil
}

// ApplyAdjustment returns the balance after applying delta.
func (a *Account) ApplyAdjustment(delta decimal.Decimal) decimal.Decimal {
	return a.Balance.Add(delta)
}

// Adjustment is a single signed balance change applied to one account as part
// of an all-or-nothing batch.
type Adjustment struct {
	Account string
	Delta   decimal.Decimal
}

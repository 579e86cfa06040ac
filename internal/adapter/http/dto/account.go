package dto

import (
	"github.com/shopspring/decimal"

	"github.com/escrowd/escrowd/internal/domain"
	"github.com/escrowd/escrowd/internal/usecase"
)

// NoFloor is the wire encoding of an unbounded minimum balance.
const NoFloor = "-infinity"

// AccountResource represents an account in API responses. Balance and the
// minimum balance floor are only populated for the account holder and admins.
type AccountResource struct {
	Name                  string           `json:"name"`
	Balance               *decimal.Decimal `json:"balance,omitempty"`
	MinimumAllowedBalance string           `json:"minimum_allowed_balance,omitempty"`
	IsAdmin               bool             `json:"is_admin,omitempty"`
}

// AccountFromDomain converts a domain account to a response, including
// balance fields only when the caller is entitled to see them.
func AccountFromDomain(a *domain.Account, includeBalance bool) *AccountResource {
	resource := &AccountResource{Name: a.Name}
	if !includeBalance {
		return resource
	}

	balance := a.Balance
	resource.Balance = &balance
	resource.IsAdmin = a.IsAdmin
	if a.NoBalanceFloor {
		resource.MinimumAllowedBalance = NoFloor
	} else {
		resource.MinimumAllowedBalance = a.MinimumAllowedBalance.String()
	}

	return resource
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account, includeBalance bool) []*AccountResource {
	result := make([]*AccountResource, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a, includeBalance)
	}
	return result
}

// CreateAccountRequest is the body of an account creation PUT.
type CreateAccountRequest struct {
	Balance               decimal.Decimal `json:"balance"`
	MinimumAllowedBalance string          `json:"minimum_allowed_balance,omitempty"`
	Password              string          `json:"password,omitempty"`
	IsAdmin               bool            `json:"is_admin,omitempty"`
}

// ToUseCaseInput converts the request to use case input. The name always
// comes from the URL. An unparseable minimum balance fails account creation
// downstream via the zero value, except the "-infinity" sentinel which lifts
// the floor entirely.
func (r *CreateAccountRequest) ToUseCaseInput(name string) (usecase.CreateAccountInput, error) {
	input := usecase.CreateAccountInput{
		Name:     name,
		Balance:  r.Balance,
		Password: r.Password,
		IsAdmin:  r.IsAdmin,
	}

	switch r.MinimumAllowedBalance {
	case "":
	case NoFloor:
		input.NoBalanceFloor = true
	default:
		floor, err := decimal.NewFromString(r.MinimumAllowedBalance)
		if err != nil {
			return usecase.CreateAccountInput{}, domain.ErrUnprocessable
		}
		input.MinimumAllowedBalance = floor
	}

	return input, nil
}

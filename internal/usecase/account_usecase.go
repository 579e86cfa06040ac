package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/escrowd/escrowd/internal/domain"
)

// AccountUseCase handles account queries and first-run seeding. Account
// provisioning policy lives outside the transfer engine; balances are only
// ever mutated through Ledger batches.
type AccountUseCase struct {
	accountRepo AccountRepository
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(accountRepo AccountRepository) *AccountUseCase {
	return &AccountUseCase{accountRepo: accountRepo}
}

// GetAccount retrieves an account by name.
func (uc *AccountUseCase) GetAccount(ctx context.Context, name string) (*domain.Account, error) {
	return uc.accountRepo.GetByName(ctx, name)
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return uc.accountRepo.List(ctx, limit, offset)
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	Name                  string
	Balance               decimal.Decimal
	MinimumAllowedBalance decimal.Decimal
	NoBalanceFloor        bool
	IsAdmin               bool
	Password              string
}

// CreateAccount provisions a new account. The caller is responsible for
// authorization.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if input.Name == "" {
		return nil, domain.ErrUnprocessable
	}

	var passwordHash string
	if input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		passwordHash = string(hash)
	}

	now := time.Now().UTC()
	account := &domain.Account{
		Name:                  input.Name,
		Balance:               input.Balance,
		MinimumAllowedBalance: input.MinimumAllowedBalance,
		NoBalanceFloor:        input.NoBalanceFloor,
		IsAdmin:               input.IsAdmin,
		PasswordHash:          passwordHash,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := uc.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// SeedInput carries the bootstrap admin credentials.
type SeedInput struct {
	AdminName     string
	AdminPassword string
}

// Seed ensures the hold escrow account and the admin account exist. It is
// safe to run on every startup.
func (uc *AccountUseCase) Seed(ctx context.Context, input SeedInput) error {
	_, err := uc.accountRepo.GetByName(ctx, domain.HoldAccountName)
	if errors.Is(err, domain.ErrAccountNotFound) {
		_, err = uc.CreateAccount(ctx, CreateAccountInput{
			Name:                  domain.HoldAccountName,
			Balance:               decimal.Zero,
			MinimumAllowedBalance: decimal.Zero,
		})
	}
	if err != nil {
		return err
	}

	if input.AdminName == "" {
		return nil
	}

	_, err = uc.accountRepo.GetByName(ctx, input.AdminName)
	if errors.Is(err, domain.ErrAccountNotFound) {
		_, err = uc.CreateAccount(ctx, CreateAccountInput{
			Name:           input.AdminName,
			Balance:        decimal.Zero,
			NoBalanceFloor: true,
			IsAdmin:        true,
			Password:       input.AdminPassword,
		})
	}

	return err
}

// Authenticate verifies an account holder's credentials and returns the
// matching principal.
func (uc *AccountUseCase) Authenticate(ctx context.Context, name, password string) (domain.Principal, error) {
	account, err := uc.accountRepo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Principal{}, domain.ErrUnauthorized
		}
		return domain.Principal{}, err
	}

	if account.PasswordHash == "" {
		return domain.Principal{}, domain.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return domain.Principal{}, domain.ErrUnauthorized
	}

	return domain.Principal{Name: account.Name, IsAdmin: account.IsAdmin}, nil
}

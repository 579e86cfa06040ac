package dto

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/escrowd/escrowd/internal/domain"
)

func TestAccountFromDomainBalanceVisibility(t *testing.T) {
	account := &domain.Account{
		Name:           "admin",
		Balance:        decimal.NewFromInt(100),
		NoBalanceFloor: true,
		IsAdmin:        true,
	}

	visible := AccountFromDomain(account, true)
	if visible.Balance == nil || !visible.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatal("expected balance for entitled caller")
	}
	if visible.MinimumAllowedBalance != NoFloor {
		t.Fatalf("expected -infinity encoding, got %q", visible.MinimumAllowedBalance)
	}

	hidden := AccountFromDomain(account, false)
	if hidden.Balance != nil || hidden.MinimumAllowedBalance != "" {
		t.Fatal("expected balance fields to be hidden")
	}
	if hidden.Name != "admin" {
		t.Fatalf("expected name, got %q", hidden.Name)
	}
}

func TestCreateAccountRequestFloorParsing(t *testing.T) {
	req := &CreateAccountRequest{MinimumAllowedBalance: "-25.50"}
	input, err := req.ToUseCaseInput("carol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if input.NoBalanceFloor {
		t.Fatal("numeric floor must not lift the floor")
	}
	if !input.MinimumAllowedBalance.Equal(decimal.RequireFromString("-25.50")) {
		t.Fatalf("unexpected floor %s", input.MinimumAllowedBalance)
	}

	req = &CreateAccountRequest{MinimumAllowedBalance: "not-a-number"}
	if _, err := req.ToUseCaseInput("carol"); err == nil {
		t.Fatal("expected error for malformed floor")
	}
}

package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testTransfer() *Transfer {
	return &Transfer{
		ID:     "http://ledger.example/transfers/155dff3f-4915-44df-a707-acb4b66e5ca6",
		Ledger: "http://ledger.example",
		Debits: []Debit{
			{Account: "alice", Amount: decimal.NewFromInt(10)},
		},
		Credits: []Credit{
			{Account: "bob", Amount: decimal.NewFromInt(10)},
		},
		State: TransferStateProposed,
	}
}

func TestTransfer_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Transfer)
		expectError error
	}{
		{
			name:        "valid transfer",
			mutate:      func(*Transfer) {},
			expectError: nil,
		},
		{
			name:        "missing id",
			mutate:      func(tr *Transfer) { tr.ID = "" },
			expectError: ErrUnprocessable,
		},
		{
			name:        "no debits",
			mutate:      func(tr *Transfer) { tr.Debits = nil },
			expectError: ErrUnprocessable,
		},
		{
			name:        "no credits",
			mutate:      func(tr *Transfer) { tr.Credits = nil },
			expectError: ErrUnprocessable,
		},
		{
			name:        "zero debit amount",
			mutate:      func(tr *Transfer) { tr.Debits[0].Amount = decimal.Zero },
			expectError: ErrInvalidAmount,
		},
		{
			name:        "negative credit amount",
			mutate:      func(tr *Transfer) { tr.Credits[0].Amount = decimal.NewFromInt(-10) },
			expectError: ErrInvalidAmount,
		},
		{
			name:        "unnamed debit account",
			mutate:      func(tr *Transfer) { tr.Debits[0].Account = "" },
			expectError: ErrUnprocessable,
		},
		{
			name:        "unbalanced sides",
			mutate:      func(tr *Transfer) { tr.Credits[0].Amount = decimal.NewFromInt(9) },
			expectError: ErrNotBalanced,
		},
		{
			name: "balanced multi-party",
			mutate: func(tr *Transfer) {
				tr.Debits = []Debit{
					{Account: "alice", Amount: decimal.NewFromInt(12)},
					{Account: "carl", Amount: decimal.NewFromInt(8)},
				}
				tr.Credits = []Credit{
					{Account: "bob", Amount: decimal.NewFromInt(10)},
					{Account: "dave", Amount: decimal.NewFromInt(10)},
				}
			},
			expectError: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transfer := testTransfer()
			tt.mutate(transfer)

			err := transfer.Validate()

			if tt.expectError == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.expectError != nil && err != tt.expectError {
				t.Errorf("expected error %v, got %v", tt.expectError, err)
			}
		})
	}
}

func TestTransferState_IsTerminal(t *testing.T) {
	if TransferStateProposed.IsTerminal() || TransferStatePrepared.IsTerminal() {
		t.Error("proposed/prepared must not be terminal")
	}
	if !TransferStateExecuted.IsTerminal() || !TransferStateRejected.IsTerminal() {
		t.Error("executed/rejected must be terminal")
	}
}

func TestTransfer_EquivalentRequest(t *testing.T) {
	base := testTransfer()

	t.Run("identical content", func(t *testing.T) {
		other := testTransfer()
		if !base.EquivalentRequest(other) {
			t.Error("identical transfers should be equivalent")
		}
	})

	t.Run("differing amount", func(t *testing.T) {
		other := testTransfer()
		other.Debits[0].Amount = decimal.NewFromInt(11)
		other.Credits[0].Amount = decimal.NewFromInt(11)
		if base.EquivalentRequest(other) {
			t.Error("differing amounts should not be equivalent")
		}
	})

	t.Run("differing condition", func(t *testing.T) {
		other := testTransfer()
		other.ExecutionCondition = "ni:///sha-256;4yER8RFCcrzETECOqae_qOBk36bv4f1EhmrO4Iur4kw?fpt=preimage-sha-256&cost=7"
		if base.EquivalentRequest(other) {
			t.Error("differing conditions should not be equivalent")
		}
	})

	t.Run("differing expiry", func(t *testing.T) {
		other := testTransfer()
		expires := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		other.ExpiresAt = &expires
		if base.EquivalentRequest(other) {
			t.Error("differing expiry should not be equivalent")
		}
	})

	t.Run("state is not part of the comparison", func(t *testing.T) {
		other := testTransfer()
		other.State = TransferStateExecuted
		if !base.EquivalentRequest(other) {
			t.Error("server-assigned state must not affect equivalence")
		}
	})
}

func TestTransfer_AllCreditsRejected(t *testing.T) {
	transfer := testTransfer()
	transfer.Credits = []Credit{
		{Account: "bob", Amount: decimal.NewFromInt(5)},
		{Account: "dave", Amount: decimal.NewFromInt(5)},
	}

	if transfer.AllCreditsRejected() {
		t.Error("no credits rejected yet")
	}

	transfer.Credits[1].Rejected = true
	if transfer.AllCreditsRejected() {
		t.Error("one of two credits rejected is not unanimous")
	}

	transfer.Credits[0].Rejected = true
	if !transfer.AllCreditsRejected() {
		t.Error("all credits rejected should report true")
	}
}

func TestTransfer_IsExpired(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	transfer := testTransfer()
	if transfer.IsExpired(now) {
		t.Error("transfer without deadline never expires")
	}

	past := now.Add(-time.Minute)
	transfer.ExpiresAt = &past
	if !transfer.IsExpired(now) {
		t.Error("transfer past its deadline should be expired")
	}

	future := now.Add(time.Minute)
	transfer.ExpiresAt = &future
	if transfer.IsExpired(now) {
		t.Error("transfer before its deadline should not be expired")
	}
}

package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escrowd/escrowd/internal/domain"
	"github.com/escrowd/escrowd/internal/usecase"
	"github.com/escrowd/escrowd/internal/usecase/mocks"
)

const (
	testCondition   = "ni:///sha-256;4yER8RFCcrzETECOqae_qOBk36bv4f1EhmrO4Iur4kw?fpt=preimage-sha-256&cost=7"
	testFulfillment = "c2VjcmV0IQ" // "secret!"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	accounts  *mocks.MockAccountRepository
	transfers *mocks.MockTransferRepository
	entries   *mocks.MockEntryRepository
	outbox    *mocks.MockOutboxRepository
	uc        *usecase.TransferUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	accounts := mocks.NewMockAccountRepository()
	accounts.Add(&domain.Account{Name: domain.HoldAccountName})
	accounts.Add(&domain.Account{Name: "alice", Balance: d("100")})
	accounts.Add(&domain.Account{Name: "bob"})
	accounts.Add(&domain.Account{Name: "dave"})

	transfers := mocks.NewMockTransferRepository()
	entries := mocks.NewMockEntryRepository()
	outbox := mocks.NewMockOutboxRepository()
	idGen := mocks.NewMockIDGenerator()

	ledger := usecase.NewLedger(accounts, entries, idGen)
	uc := usecase.NewTransferUseCase(
		mocks.NewMockTransactionManager(),
		ledger,
		transfers,
		outbox,
		nil,
		idGen,
		usecase.DefaultAmountSpec,
		nil,
	)

	return &fixture{
		accounts:  accounts,
		transfers: transfers,
		entries:   entries,
		outbox:    outbox,
		uc:        uc,
	}
}

func (f *fixture) requireEntriesConserved(t *testing.T) {
	t.Helper()

	total := decimal.Zero
	for _, e := range f.entries.All() {
		total = total.Add(e.Amount)
	}
	assert.True(t, total.IsZero(), "entry amounts must sum to zero, got %s", total)
}

func simpleTransfer(id, from, to, amount string) *domain.Transfer {
	return &domain.Transfer{
		ID:      id,
		Ledger:  "http://localhost",
		Debits:  []domain.Debit{{Account: from, Amount: d(amount)}},
		Credits: []domain.Credit{{Account: to, Amount: d(amount)}},
	}
}

func conditionalTransfer(id, from, to, amount string) *domain.Transfer {
	transfer := simpleTransfer(id, from, to, amount)
	transfer.ExecutionCondition = testCondition
	return transfer
}

func TestPrepareTransfer_UnconditionalExecutesImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.uc.PrepareTransfer(ctx, simpleTransfer("t1", "alice", "bob", "10"), domain.Principal{Name: "alice"})
	require.NoError(t, err)

	assert.Equal(t, domain.TransferStateExecuted, got.State)
	require.NotNil(t, got.Timeline.ExecutedAt)
	assert.Nil(t, got.Timeline.PreparedAt)

	assert.True(t, f.accounts.Balance("alice").Equal(d("90")))
	assert.True(t, f.accounts.Balance("bob").Equal(d("10")))
	assert.True(t, f.accounts.Balance(domain.HoldAccountName).IsZero())
	f.requireEntriesConserved(t)

	events := f.outbox.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeTransferExecuted, events[0].EventType)
}

func TestPrepareTransfer_ConditionalEscrowsDebits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.uc.PrepareTransfer(ctx, conditionalTransfer("t1", "alice", "bob", "10"), domain.Principal{Name: "alice"})
	require.NoError(t, err)

	assert.Equal(t, domain.TransferStatePrepared, got.State)
	require.NotNil(t, got.Timeline.PreparedAt)
	assert.Nil(t, got.Timeline.ExecutedAt)

	assert.True(t, f.accounts.Balance("alice").Equal(d("90")))
	assert.True(t, f.accounts.Balance("bob").IsZero(), "credit must not pay out before fulfillment")
	assert.True(t, f.accounts.Balance(domain.HoldAccountName).Equal(d("10")))
	f.requireEntriesConserved(t)

	events := f.outbox.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeTransferPrepared, events[0].EventType)
}

func TestPrepareTransfer_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.PrepareTransfer(ctx, simpleTransfer("t1", "alice", "bob", "100.01"), domain.Principal{Name: "alice"})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	assert.True(t, f.accounts.Balance("alice").Equal(d("100")))
	assert.True(t, f.accounts.Balance("bob").IsZero())
	assert.Empty(t, f.entries.All())
}

func TestPrepareTransfer_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.PrepareTransfer(ctx, simpleTransfer("t1", "alice", "nobody", "10"), domain.Principal{Name: "alice"})
	require.ErrorIs(t, err, domain.ErrUnprocessable)

	assert.True(t, f.accounts.Balance("alice").Equal(d("100")))
}

func TestPrepareTransfer_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := domain.Principal{Name: "alice"}

	t.Run("unbalanced sides", func(t *testing.T) {
		transfer := simpleTransfer("t1", "alice", "bob", "10")
		transfer.Credits[0].Amount = d("9")
		_, err := f.uc.PrepareTransfer(ctx, transfer, alice)
		require.ErrorIs(t, err, domain.ErrUnprocessable)
	})

	t.Run("negative amount", func(t *testing.T) {
		transfer := simpleTransfer("t2", "alice", "bob", "10")
		transfer.Debits[0].Amount = d("-10")
		_, err := f.uc.PrepareTransfer(ctx, transfer, alice)
		require.ErrorIs(t, err, domain.ErrUnprocessable)
	})

	t.Run("excess scale", func(t *testing.T) {
		_, err := f.uc.PrepareTransfer(ctx, simpleTransfer("t3", "alice", "bob", "0.001"), alice)
		require.ErrorIs(t, err, domain.ErrUnprocessable)
	})

	t.Run("malformed condition", func(t *testing.T) {
		transfer := simpleTransfer("t4", "alice", "bob", "10")
		transfer.ExecutionCondition = "cc:0:3:notaconditionuri:7"
		_, err := f.uc.PrepareTransfer(ctx, transfer, alice)
		require.ErrorIs(t, err, domain.ErrUnprocessable)
	})

	t.Run("expired proposal", func(t *testing.T) {
		transfer := conditionalTransfer("t5", "alice", "bob", "10")
		past := time.Now().UTC().Add(-time.Minute)
		transfer.ExpiresAt = &past
		_, err := f.uc.PrepareTransfer(ctx, transfer, alice)
		require.ErrorIs(t, err, domain.ErrUnprocessable)
	})

	assert.True(t, f.accounts.Balance("alice").Equal(d("100")))
	assert.Empty(t, f.entries.All())
}

func TestPrepareTransfer_DebitAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.PrepareTransfer(ctx, simpleTransfer("t1", "alice", "bob", "10"), domain.Principal{Name: "bob"})
	require.ErrorIs(t, err, domain.ErrDebitUnauthorized)

	_, err = f.uc.PrepareTransfer(ctx, simpleTransfer("t1", "alice", "bob", "10"), domain.Principal{Name: "admin", IsAdmin: true})
	require.NoError(t, err)
}

func TestPrepareTransfer_IdempotentResubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := domain.Principal{Name: "alice"}

	first, err := f.uc.PrepareTransfer(ctx, conditionalTransfer("t1", "alice", "bob", "10"), alice)
	require.NoError(t, err)

	second, err := f.uc.PrepareTransfer(ctx, conditionalTransfer("t1", "alice", "bob", "10"), alice)
	require.NoError(t, err)
	assert.Equal(t, first.State, second.State)

	// Funds move exactly once.
	assert.True(t, f.accounts.Balance("alice").Equal(d("90")))
	assert.True(t, f.accounts.Balance(domain.HoldAccountName).Equal(d("10")))
	assert.Len(t, f.outbox.Events(), 1)

	// Same ID with a different body is a modification attempt.
	_, err = f.uc.PrepareTransfer(ctx, conditionalTransfer("t1", "alice", "bob", "20"), alice)
	require.ErrorIs(t, err, domain.ErrInvalidModification)
}

func TestFulfillTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := domain.Principal{Name: "alice"}

	_, err := f.uc.PrepareTransfer(ctx, conditionalTransfer("t1", "alice", "bob", "10"), alice)
	require.NoError(t, err)

	t.Run("wrong preimage", func(t *testing.T) {
		_, err := f.uc.FulfillTransfer(ctx, "t1", "bm9wZQ", alice)
		require.ErrorIs(t, err, domain.ErrUnmetCondition)
		assert.True(t, f.accounts.Balance("bob").IsZero())
	})

	t.Run("valid preimage executes", func(t *testing.T) {
		got, err := f.uc.FulfillTransfer(ctx, "t1", testFulfillment, domain.Principal{Name: "bob"})
		require.NoError(t, err)

		assert.Equal(t, domain.TransferStateExecuted, got.State)
		assert.Equal(t, testFulfillment, got.Fulfillment)
		require.NotNil(t, got.Timeline.ExecutedAt)

		assert.True(t, f.accounts.Balance("alice").Equal(d("90")))
		assert.True(t, f.accounts.Balance("bob").Equal(d("10")))
		assert.True(t, f.accounts.Balance(domain.HoldAccountName).IsZero())
		f.requireEntriesConserved(t)
	})

	t.Run("repeat fulfillment", func(t *testing.T) {
		_, err := f.uc.FulfillTransfer(ctx, "t1", testFulfillment, alice)
		require.ErrorIs(t, err, domain.ErrInvalidModification)
	})

	t.Run("unknown transfer", func(t *testing.T) {
		_, err := f.uc.FulfillTransfer(ctx, "missing", testFulfillment, alice)
		require.ErrorIs(t, err, domain.ErrTransferNotFound)
	})
}

func TestFulfillTransfer_Unconditional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.PrepareTransfer(ctx, simpleTransfer("t1", "alice", "bob", "10"), domain.Principal{Name: "alice"})
	require.NoError(t, err)

	_, err = f.uc.FulfillTransfer(ctx, "t1", testFulfillment, domain.Principal{Name: "bob"})
	require.ErrorIs(t, err, domain.ErrInvalidModification)
}

func TestFulfillTransfer_PastDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Seed an already-prepared transfer whose deadline has passed. Funds sit
	// in the hold account.
	past := time.Now().UTC().Add(-time.Minute)
	transfer := conditionalTransfer("t1", "alice", "bob", "10")
	transfer.State = domain.TransferStatePrepared
	transfer.ExpiresAt = &past
	require.NoError(t, f.transfers.Insert(ctx, nil, transfer))

	_, err := f.uc.FulfillTransfer(ctx, "t1", testFulfillment, domain.Principal{Name: "bob"})
	require.ErrorIs(t, err, domain.ErrInvalidModification)
}

func TestFulfillTransfer_SkipsRejectedCredits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := domain.Principal{Name: "alice"}

	transfer := &domain.Transfer{
		ID:     "t1",
		Ledger: "http://localhost",
		Debits: []domain.Debit{{Account: "alice", Amount: d("20")}},
		Credits: []domain.Credit{
			{Account: "bob", Amount: d("10")},
			{Account: "dave", Amount: d("10")},
		},
		ExecutionCondition: testCondition,
	}
	_, err := f.uc.PrepareTransfer(ctx, transfer, alice)
	require.NoError(t, err)

	_, err = f.uc.RejectTransferCredit(ctx, "t1", nil, domain.Principal{Name: "bob"})
	require.NoError(t, err)

	got, err := f.uc.FulfillTransfer(ctx, "t1", testFulfillment, domain.Principal{Name: "dave"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateExecuted, got.State)

	// Bob's rejected share stays with Alice; only Dave is paid.
	assert.True(t, f.accounts.Balance("alice").Equal(d("90")))
	assert.True(t, f.accounts.Balance("bob").IsZero())
	assert.True(t, f.accounts.Balance("dave").Equal(d("10")))
	assert.True(t, f.accounts.Balance(domain.HoldAccountName).IsZero())
	f.requireEntriesConserved(t)
}

func TestRejectTransferCredit_SingleCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.PrepareTransfer(ctx, conditionalTransfer("t1", "alice", "bob", "10"), domain.Principal{Name: "alice"})
	require.NoError(t, err)

	message := &domain.RejectionMessage{
		Code:    "R01",
		Name:    "Insufficient Source Amount",
		Message: "not enough money",
	}
	got, err := f.uc.RejectTransferCredit(ctx, "t1", message, domain.Principal{Name: "bob"})
	require.NoError(t, err)

	assert.Equal(t, domain.TransferStateRejected, got.State)
	assert.Equal(t, domain.RejectionReasonCancelled, got.RejectionReason)
	require.NotNil(t, got.Timeline.RejectedAt)
	require.True(t, got.Credits[0].Rejected)
	assert.Equal(t, message, got.Credits[0].RejectionMessage)

	assert.True(t, f.accounts.Balance("alice").Equal(d("100")))
	assert.True(t, f.accounts.Balance(domain.HoldAccountName).IsZero())
	f.requireEntriesConserved(t)
}

func TestRejectTransferCredit_UnanimityRequired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	transfer := &domain.Transfer{
		ID:     "t1",
		Ledger: "http://localhost",
		Debits: []domain.Debit{{Account: "alice", Amount: d("20")}},
		Credits: []domain.Credit{
			{Account: "bob", Amount: d("10")},
			{Account: "dave", Amount: d("10")},
		},
		ExecutionCondition: testCondition,
	}
	_, err := f.uc.PrepareTransfer(ctx, transfer, domain.Principal{Name: "alice"})
	require.NoError(t, err)
	assert.True(t, f.accounts.Balance("alice").Equal(d("80")))

	got, err := f.uc.RejectTransferCredit(ctx, "t1", nil, domain.Principal{Name: "bob"})
	require.NoError(t, err)

	// One holdout keeps the transfer alive; only Bob's share is returned.
	assert.Equal(t, domain.TransferStatePrepared, got.State)
	assert.Nil(t, got.Timeline.RejectedAt)
	assert.True(t, f.accounts.Balance("alice").Equal(d("90")))
	assert.True(t, f.accounts.Balance(domain.HoldAccountName).Equal(d("10")))

	got, err = f.uc.RejectTransferCredit(ctx, "t1", nil, domain.Principal{Name: "dave"})
	require.NoError(t, err)

	assert.Equal(t, domain.TransferStateRejected, got.State)
	assert.Equal(t, domain.RejectionReasonCancelled, got.RejectionReason)
	assert.True(t, f.accounts.Balance("alice").Equal(d("100")))
	assert.True(t, f.accounts.Balance(domain.HoldAccountName).IsZero())
	f.requireEntriesConserved(t)

	// transfer.prepared, two credit_rejected, transfer.rejected.
	var rejectedEvents, creditEvents int
	for _, e := range f.outbox.Events() {
		switch e.EventType {
		case domain.EventTypeCreditRejected:
			creditEvents++
		case domain.EventTypeTransferRejected:
			rejectedEvents++
		}
	}
	assert.Equal(t, 2, creditEvents)
	assert.Equal(t, 1, rejectedEvents)
}

func TestRejectTransferCredit_ProportionalAcrossDebits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.accounts.Add(&domain.Account{Name: "carol", Balance: d("50")})

	transfer := &domain.Transfer{
		ID:     "t1",
		Ledger: "http://localhost",
		Debits: []domain.Debit{
			{Account: "alice", Amount: d("1.00")},
			{Account: "carol", Amount: d("1.00")},
		},
		Credits: []domain.Credit{
			{Account: "bob", Amount: d("1.99")},
			{Account: "dave", Amount: d("0.01")},
		},
		ExecutionCondition: testCondition,
	}
	_, err := f.uc.PrepareTransfer(ctx, transfer, domain.Principal{Name: "admin", IsAdmin: true})
	require.NoError(t, err)

	_, err = f.uc.RejectTransferCredit(ctx, "t1", nil, domain.Principal{Name: "dave"})
	require.NoError(t, err)

	// Dave's 0.01 splits pro rata: 0.005 per debtor rounds down to zero at
	// two decimal places, so the whole remainder lands on the last debit.
	assert.True(t, f.accounts.Balance("alice").Equal(d("99.00")))
	assert.True(t, f.accounts.Balance("carol").Equal(d("49.01")))
	assert.True(t, f.accounts.Balance(domain.HoldAccountName).Equal(d("1.99")))
	f.requireEntriesConserved(t)
}

func TestRejectTransferCredit_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.PrepareTransfer(ctx, conditionalTransfer("t1", "alice", "bob", "10"), domain.Principal{Name: "alice"})
	require.NoError(t, err)

	t.Run("debtor may not reject", func(t *testing.T) {
		_, err := f.uc.RejectTransferCredit(ctx, "t1", nil, domain.Principal{Name: "alice"})
		require.ErrorIs(t, err, domain.ErrRejectUnauthorized)
	})

	t.Run("admin may not reject on behalf of holder", func(t *testing.T) {
		_, err := f.uc.RejectTransferCredit(ctx, "t1", nil, domain.Principal{Name: "admin", IsAdmin: true})
		require.ErrorIs(t, err, domain.ErrRejectUnauthorized)
	})

	t.Run("double rejection", func(t *testing.T) {
		_, err := f.uc.RejectTransferCredit(ctx, "t1", nil, domain.Principal{Name: "bob"})
		require.NoError(t, err)
		_, err = f.uc.RejectTransferCredit(ctx, "t1", nil, domain.Principal{Name: "bob"})
		require.ErrorIs(t, err, domain.ErrInvalidModification)
	})

	t.Run("non-holder on terminal transfer still gets authorization error", func(t *testing.T) {
		_, err := f.uc.RejectTransferCredit(ctx, "t1", nil, domain.Principal{Name: "dave"})
		require.ErrorIs(t, err, domain.ErrRejectUnauthorized)
	})
}

func TestRejectTransferCredit_AfterExecution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.PrepareTransfer(ctx, conditionalTransfer("t1", "alice", "bob", "10"), domain.Principal{Name: "alice"})
	require.NoError(t, err)
	_, err = f.uc.FulfillTransfer(ctx, "t1", testFulfillment, domain.Principal{Name: "bob"})
	require.NoError(t, err)

	_, err = f.uc.RejectTransferCredit(ctx, "t1", nil, domain.Principal{Name: "bob"})
	require.ErrorIs(t, err, domain.ErrInvalidModification)

	assert.True(t, f.accounts.Balance("bob").Equal(d("10")))
}

func TestExpireTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Minute)
	transfer := conditionalTransfer("t1", "alice", "bob", "10")
	transfer.State = domain.TransferStatePrepared
	transfer.ExpiresAt = &past
	require.NoError(t, f.transfers.Insert(ctx, nil, transfer))

	// Escrow already reserved when the transfer was prepared.
	require.NoError(t, f.accounts.UpdateBalance(ctx, nil, "alice", d("90"), past))
	require.NoError(t, f.accounts.UpdateBalance(ctx, nil, domain.HoldAccountName, d("10"), past))

	require.NoError(t, f.uc.ExpireTransfer(ctx, "t1"))

	got, err := f.uc.GetTransfer(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateRejected, got.State)
	assert.Equal(t, domain.RejectionReasonExpired, got.RejectionReason)
	require.NotNil(t, got.Timeline.RejectedAt)

	assert.True(t, f.accounts.Balance("alice").Equal(d("100")))
	assert.True(t, f.accounts.Balance(domain.HoldAccountName).IsZero())

	// Sweeping again is a no-op.
	require.NoError(t, f.uc.ExpireTransfer(ctx, "t1"))
	assert.True(t, f.accounts.Balance("alice").Equal(d("100")))
}

func TestExpireTransfer_NotDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	future := time.Now().UTC().Add(time.Hour)
	transfer := conditionalTransfer("t1", "alice", "bob", "10")
	transfer.ExpiresAt = &future
	_, err := f.uc.PrepareTransfer(ctx, transfer, domain.Principal{Name: "alice"})
	require.NoError(t, err)

	require.NoError(t, f.uc.ExpireTransfer(ctx, "t1"))

	got, err := f.uc.GetTransfer(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatePrepared, got.State)
	assert.True(t, f.accounts.Balance(domain.HoldAccountName).Equal(d("10")))
}

func TestFulfillTransfer_GivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.PrepareTransfer(ctx, conditionalTransfer("t1", "alice", "bob", "10"), domain.Principal{Name: "alice"})
	require.NoError(t, err)

	attempts := 0
	f.transfers.UpdateFunc = func(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer, expectedPrior domain.TransferState) error {
		attempts++
		return domain.ErrConflict
	}

	_, err = f.uc.FulfillTransfer(ctx, "t1", testFulfillment, domain.Principal{Name: "bob"})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 3, attempts)
}

func cloneTransfer(t *domain.Transfer) *domain.Transfer {
	copied := *t
	copied.Debits = append([]domain.Debit(nil), t.Debits...)
	copied.Credits = append([]domain.Credit(nil), t.Credits...)
	return &copied
}

func twoCreditTransfer(id string) *domain.Transfer {
	return &domain.Transfer{
		ID:     id,
		Ledger: "http://localhost",
		Debits: []domain.Debit{{Account: "alice", Amount: d("12")}},
		Credits: []domain.Credit{
			{Account: "bob", Amount: d("6")},
			{Account: "dave", Amount: d("6")},
		},
		ExecutionCondition: testCondition,
	}
}

func TestRejectTransferCredit_StaleReadCannotRefundTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.PrepareTransfer(ctx, twoCreditTransfer("t1"), domain.Principal{Name: "alice"})
	require.NoError(t, err)

	// A reader that raced ahead of Bob's rejection holds this snapshot.
	stale, err := f.uc.GetTransfer(ctx, "t1")
	require.NoError(t, err)

	_, err = f.uc.RejectTransferCredit(ctx, "t1", nil, domain.Principal{Name: "bob"})
	require.NoError(t, err)
	require.True(t, f.accounts.Balance("alice").Equal(d("94")))

	// Rejecting a credit keeps the transfer prepared, so the state column
	// cannot arbitrate; the bumped version must make the stale writer lose.
	f.transfers.GetByIDFunc = func(ctx context.Context, id string) (*domain.Transfer, error) {
		return cloneTransfer(stale), nil
	}
	_, err = f.uc.RejectTransferCredit(ctx, "t1", nil, domain.Principal{Name: "bob"})
	require.ErrorIs(t, err, domain.ErrConflict)
	f.transfers.GetByIDFunc = nil

	// Bob's share was refunded exactly once.
	assert.True(t, f.accounts.Balance("alice").Equal(d("94")))
	assert.True(t, f.accounts.Balance(domain.HoldAccountName).Equal(d("6")))
	f.requireEntriesConserved(t)

	got, err := f.uc.GetTransfer(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatePrepared, got.State)
	assert.True(t, got.Credits[0].Rejected)
	assert.False(t, got.Credits[1].Rejected)
}

func TestFulfillTransfer_StaleReadLosesToPartialRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.PrepareTransfer(ctx, twoCreditTransfer("t1"), domain.Principal{Name: "alice"})
	require.NoError(t, err)

	stale, err := f.uc.GetTransfer(ctx, "t1")
	require.NoError(t, err)

	_, err = f.uc.RejectTransferCredit(ctx, "t1", nil, domain.Principal{Name: "bob"})
	require.NoError(t, err)

	// A fulfillment computed from the pre-rejection snapshot would pay Bob
	// funds that were already returned to Alice.
	f.transfers.GetByIDFunc = func(ctx context.Context, id string) (*domain.Transfer, error) {
		return cloneTransfer(stale), nil
	}
	_, err = f.uc.FulfillTransfer(ctx, "t1", testFulfillment, domain.Principal{Name: "bob"})
	require.ErrorIs(t, err, domain.ErrConflict)
	f.transfers.GetByIDFunc = nil

	assert.True(t, f.accounts.Balance("bob").IsZero())
	assert.True(t, f.accounts.Balance(domain.HoldAccountName).Equal(d("6")))

	// A fresh read settles the remaining credit only.
	got, err := f.uc.FulfillTransfer(ctx, "t1", testFulfillment, domain.Principal{Name: "bob"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateExecuted, got.State)
	assert.True(t, f.accounts.Balance("bob").IsZero())
	assert.True(t, f.accounts.Balance("dave").Equal(d("6")))
	assert.True(t, f.accounts.Balance(domain.HoldAccountName).IsZero())
	f.requireEntriesConserved(t)
}

func TestAmountSpecValidate(t *testing.T) {
	spec := usecase.AmountSpec{Precision: 10, Scale: 2}

	tests := []struct {
		amount string
		ok     bool
	}{
		{"10", true},
		{"0.01", true},
		{"99999999.99", true},
		{"0.001", false},
		{"12345678901", false},
		{"123456789.012", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := spec.Validate(d(tt.amount))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrUnprocessable)
			}
		})
	}
}

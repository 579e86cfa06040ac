package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/escrowd/escrowd/internal/domain"
)

// Ledger applies balance-adjustment batches against accounts. A batch is
// all-or-nothing: it fails without effect if any account is unknown or any
// resulting balance would breach that account's floor.
//
// Accounts are locked in sorted name order before any balance is read, so two
// batches touching overlapping accounts serialize and no reader ever observes
// an intermediate state.
type Ledger struct {
	accountRepo AccountRepository
	entryRepo   EntryRepository
	idGen       IDGenerator
}

// NewLedger creates a new Ledger.
func NewLedger(accountRepo AccountRepository, entryRepo EntryRepository, idGen IDGenerator) *Ledger {
	return &Ledger{
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		idGen:       idGen,
	}
}

// Apply performs the batch inside the caller's transaction, recording one
// entry per affected account. transferID ties the entries to the transition
// that caused them.
func (l *Ledger) Apply(ctx context.Context, tx Transaction, transferID string, adjustments []domain.Adjustment, now time.Time) error {
	merged := mergeAdjustments(adjustments)
	if len(merged) == 0 {
		return nil
	}

	names := make([]string, 0, len(merged))
	for _, adj := range merged {
		names = append(names, adj.Account)
	}
	sort.Strings(names)

	accounts, err := l.accountRepo.GetByNamesForUpdate(ctx, tx, names)
	if err != nil {
		return err
	}

	if len(accounts) != len(names) {
		return domain.ErrAccountNotFound
	}

	accountMap := make(map[string]*domain.Account, len(accounts))
	for _, a := range accounts {
		accountMap[a.Name] = a
	}

	// Validate the whole batch before mutating anything.
	for _, adj := range merged {
		account := accountMap[adj.Account]
		if account == nil {
			return domain.ErrAccountNotFound
		}

		if err := account.ValidateAdjustment(adj.Delta); err != nil {
			return err
		}
	}

	for _, adj := range merged {
		account := accountMap[adj.Account]
		newBalance := account.ApplyAdjustment(adj.Delta)

		entry := &domain.Entry{
			ID:              l.idGen.Generate(),
			Account:         account.Name,
			TransferID:      transferID,
			Amount:          adj.Delta,
			PreviousBalance: account.Balance,
			CurrentBalance:  newBalance,
			CreatedAt:       now,
		}

		if err := l.entryRepo.Create(ctx, tx, entry); err != nil {
			return err
		}

		if err := l.accountRepo.UpdateBalance(ctx, tx, account.Name, newBalance, now); err != nil {
			return err
		}

		account.Balance = newBalance
	}

	return nil
}

// mergeAdjustments combines deltas per account and drops zero deltas, keeping
// first-seen account order.
func mergeAdjustments(adjustments []domain.Adjustment) []domain.Adjustment {
	index := make(map[string]int)

	var merged []domain.Adjustment
	for _, adj := range adjustments {
		if i, ok := index[adj.Account]; ok {
			merged[i].Delta = merged[i].Delta.Add(adj.Delta)
			continue
		}

		index[adj.Account] = len(merged)
		merged = append(merged, adj)
	}

	out := merged[:0]
	for _, adj := range merged {
		if !adj.Delta.IsZero() {
			out = append(out, adj)
		}
	}

	return out
}

// ConsistencyResult reports the outcome of a ledger-wide conservation check.
type ConsistencyResult struct {
	BalanceTotal decimal.Decimal
	EntryTotal   decimal.Decimal
	Consistent   bool
	CheckedAt    time.Time
}

// ConsistencyUseCase verifies ledger-wide value conservation.
type ConsistencyUseCase struct {
	ledgerRepo LedgerRepository
}

// NewConsistencyUseCase creates a new ConsistencyUseCase.
func NewConsistencyUseCase(ledgerRepo LedgerRepository) *ConsistencyUseCase {
	return &ConsistencyUseCase{ledgerRepo: ledgerRepo}
}

// CheckConsistency sums all entries across the ledger. Every transition
// writes a zero-sum batch, so a conserving ledger reports an entry total of
// exactly zero.
func (uc *ConsistencyUseCase) CheckConsistency(ctx context.Context) (*ConsistencyResult, error) {
	balanceTotal, err := uc.ledgerRepo.SumBalances(ctx)
	if err != nil {
		return nil, err
	}

	entryTotal, err := uc.ledgerRepo.SumEntries(ctx)
	if err != nil {
		return nil, err
	}

	return &ConsistencyResult{
		BalanceTotal: balanceTotal,
		EntryTotal:   entryTotal,
		Consistent:   entryTotal.IsZero(),
		CheckedAt:    time.Now().UTC(),
	}, nil
}

package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/escrowd/escrowd/internal/domain"
)

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByName(ctx context.Context, name string) (*domain.Account, error)
	// GetByNamesForUpdate locks the named accounts for the duration of the
	// transaction. Implementations must acquire the locks in a deterministic
	// (sorted) order regardless of input order.
	GetByNamesForUpdate(ctx context.Context, tx Transaction, names []string) ([]*domain.Account, error)
	UpdateBalance(ctx context.Context, tx Transaction, name string, balance decimal.Decimal, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// TransferRepository defines data access for transfers and their credit/debit
// sub-records.
type TransferRepository interface {
	// Insert persists a new transfer. A duplicate ID fails with
	// domain.ErrConflict.
	Insert(ctx context.Context, tx Transaction, transfer *domain.Transfer) error
	GetByID(ctx context.Context, id string) (*domain.Transfer, error)
	// Update persists a state transition. It fails with domain.ErrConflict
	// when the stored state no longer matches expectedPrior.
	Update(ctx context.Context, tx Transaction, transfer *domain.Transfer, expectedPrior domain.TransferState) error
	// ListExpiredIDs returns IDs of non-terminal transfers whose deadline has
	// passed as of the given instant.
	ListExpiredIDs(ctx context.Context, asOf time.Time, limit int) ([]string, error)
}

// EntryRepository defines data access for balance-movement entries.
type EntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.Entry) error
	ListByTransfer(ctx context.Context, transferID string) ([]*domain.Entry, error)
	ListByAccount(ctx context.Context, account string, limit, offset int) ([]*domain.Entry, error)
}

// LedgerRepository defines ledger-wide aggregate queries.
type LedgerRepository interface {
	// SumBalances returns the sum of every account balance.
	SumBalances(ctx context.Context) (decimal.Decimal, error)
	// SumEntries returns the sum of every entry amount. A conserving ledger
	// keeps this at exactly zero.
	SumEntries(ctx context.Context) (decimal.Decimal, error)
}

// OutboxRepository defines data access for pending notifications.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// ConditionVerifier validates a fulfillment against a condition URI.
type ConditionVerifier interface {
	Verify(conditionURI, fulfillment string) bool
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs for entries and events.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database
	// transaction. This prevents long-running transactions from blocking
	// locked account rows.
	DefaultTransactionTimeout = 10 * time.Second

	// maxConflictRetries bounds the internal retry loop for lost
	// optimistic-concurrency races. Any other failure is surfaced verbatim.
	maxConflictRetries = 3

	// IdempotencyKeyTTL is how long idempotency keys are cached.
	IdempotencyKeyTTL = 24 * time.Hour
)

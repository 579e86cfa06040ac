package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/escrowd/escrowd/internal/domain"
	"github.com/escrowd/escrowd/internal/usecase"
)

const entryColumns = `id, account, transfer_id, amount, previous_balance, current_balance, created_at`

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	pool *pgxpool.Pool
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{pool: pool}
}

// Create records a balance movement within a transaction.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	query := `
		INSERT INTO entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := tx.(*Tx).PgxTx().Exec(ctx, query,
		entry.ID,
		entry.Account,
		entry.TransferID,
		decimalToNumeric(entry.Amount),
		decimalToNumeric(entry.PreviousBalance),
		decimalToNumeric(entry.CurrentBalance),
		entry.CreatedAt,
	)

	return err
}

// ListByTransfer returns every entry a transfer produced, oldest first.
func (r *EntryRepository) ListByTransfer(ctx context.Context, transferID string) ([]*domain.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE transfer_id = $1 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

// ListByAccount returns an account's entries, newest first.
func (r *EntryRepository) ListByAccount(ctx context.Context, account string, limit, offset int) ([]*domain.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE account = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, account, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	for rows.Next() {
		var (
			entry    domain.Entry
			amount   pgtype.Numeric
			previous pgtype.Numeric
			current  pgtype.Numeric
		)

		err := rows.Scan(
			&entry.ID,
			&entry.Account,
			&entry.TransferID,
			&amount,
			&previous,
			&current,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		entry.Amount = numericToDecimal(amount)
		entry.PreviousBalance = numericToDecimal(previous)
		entry.CurrentBalance = numericToDecimal(current)

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

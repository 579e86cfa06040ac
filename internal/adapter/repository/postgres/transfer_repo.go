package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/escrowd/escrowd/internal/domain"
	"github.com/escrowd/escrowd/internal/usecase"
)

const transferColumns = `id, ledger, execution_condition, cancellation_condition, expires_at,
	state, rejection_reason, fulfillment,
	proposed_at, prepared_at, executed_at, rejected_at, version, created_at, updated_at`

// TransferRepository implements usecase.TransferRepository. A transfer spans
// three tables: the transfers row plus ordered debit and credit side rows.
type TransferRepository struct {
	pool *pgxpool.Pool
}

// NewTransferRepository creates a new TransferRepository.
func NewTransferRepository(pool *pgxpool.Pool) *TransferRepository {
	return &TransferRepository{pool: pool}
}

// Insert persists a new transfer and its sides. A duplicate ID fails with
// domain.ErrConflict.
func (r *TransferRepository) Insert(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error {
	pgxTx := tx.(*Tx).PgxTx()

	query := `
		INSERT INTO transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := pgxTx.Exec(ctx, query,
		transfer.ID,
		transfer.Ledger,
		transfer.ExecutionCondition,
		transfer.CancellationCondition,
		transfer.ExpiresAt,
		string(transfer.State),
		string(transfer.RejectionReason),
		transfer.Fulfillment,
		transfer.Timeline.ProposedAt,
		transfer.Timeline.PreparedAt,
		transfer.Timeline.ExecutedAt,
		transfer.Timeline.RejectedAt,
		transfer.Version,
		transfer.CreatedAt,
		transfer.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return err
	}

	for i, d := range transfer.Debits {
		memo, err := marshalMemo(d.Memo)
		if err != nil {
			return err
		}

		_, err = pgxTx.Exec(ctx,
			`INSERT INTO transfer_debits (transfer_id, position, account, amount, memo) VALUES ($1, $2, $3, $4, $5)`,
			transfer.ID, i, d.Account, decimalToNumeric(d.Amount), memo,
		)
		if err != nil {
			return err
		}
	}

	for i, c := range transfer.Credits {
		memo, err := marshalMemo(c.Memo)
		if err != nil {
			return err
		}
		message, err := marshalRejectionMessage(c.RejectionMessage)
		if err != nil {
			return err
		}

		_, err = pgxTx.Exec(ctx,
			`INSERT INTO transfer_credits (transfer_id, position, account, amount, memo, rejected, rejection_message)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			transfer.ID, i, c.Account, decimalToNumeric(c.Amount), memo, c.Rejected, message,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetByID retrieves a transfer with its sides.
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`

	transfer, err := scanTransfer(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}

	if transfer.Debits, err = r.loadDebits(ctx, id); err != nil {
		return nil, err
	}
	if transfer.Credits, err = r.loadCredits(ctx, id); err != nil {
		return nil, err
	}

	return transfer, nil
}

// Update persists a state transition. The version column is the optimistic
// concurrency token and every committed update increments it, so a writer
// holding a stale read loses even on transitions that keep the same state,
// such as a partial credit rejection of a multi-credit transfer. The prior
// state is matched as well so the error reflects what the caller observed.
func (r *TransferRepository) Update(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer, expectedPrior domain.TransferState) error {
	pgxTx := tx.(*Tx).PgxTx()

	query := `
		UPDATE transfers
		SET state = $2, rejection_reason = $3, fulfillment = $4,
		    executed_at = $5, rejected_at = $6, updated_at = $7,
		    version = version + 1
		WHERE id = $1 AND state = $8 AND version = $9
	`

	tag, err := pgxTx.Exec(ctx, query,
		transfer.ID,
		string(transfer.State),
		string(transfer.RejectionReason),
		transfer.Fulfillment,
		transfer.Timeline.ExecutedAt,
		transfer.Timeline.RejectedAt,
		transfer.UpdatedAt,
		string(expectedPrior),
		transfer.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	transfer.Version++

	for i, c := range transfer.Credits {
		message, err := marshalRejectionMessage(c.RejectionMessage)
		if err != nil {
			return err
		}

		_, err = pgxTx.Exec(ctx,
			`UPDATE transfer_credits SET rejected = $3, rejection_message = $4 WHERE transfer_id = $1 AND position = $2`,
			transfer.ID, i, c.Rejected, message,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// ListExpiredIDs returns IDs of non-terminal transfers due for expiry.
func (r *TransferRepository) ListExpiredIDs(ctx context.Context, asOf time.Time, limit int) ([]string, error) {
	query := `
		SELECT id FROM transfers
		WHERE state IN ('proposed', 'prepared')
		  AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *TransferRepository) loadDebits(ctx context.Context, transferID string) ([]domain.Debit, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT account, amount, memo FROM transfer_debits WHERE transfer_id = $1 ORDER BY position`,
		transferID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var debits []domain.Debit
	for rows.Next() {
		var (
			debit  domain.Debit
			amount pgtype.Numeric
			memo   []byte
		)
		if err := rows.Scan(&debit.Account, &amount, &memo); err != nil {
			return nil, err
		}

		debit.Amount = numericToDecimal(amount)
		if debit.Memo, err = unmarshalMemo(memo); err != nil {
			return nil, err
		}

		debits = append(debits, debit)
	}

	return debits, rows.Err()
}

func (r *TransferRepository) loadCredits(ctx context.Context, transferID string) ([]domain.Credit, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT account, amount, memo, rejected, rejection_message FROM transfer_credits WHERE transfer_id = $1 ORDER BY position`,
		transferID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var credits []domain.Credit
	for rows.Next() {
		var (
			credit  domain.Credit
			amount  pgtype.Numeric
			memo    []byte
			message []byte
		)
		if err := rows.Scan(&credit.Account, &amount, &memo, &credit.Rejected, &message); err != nil {
			return nil, err
		}

		credit.Amount = numericToDecimal(amount)
		if credit.Memo, err = unmarshalMemo(memo); err != nil {
			return nil, err
		}
		if len(message) > 0 {
			credit.RejectionMessage = &domain.RejectionMessage{}
			if err := json.Unmarshal(message, credit.RejectionMessage); err != nil {
				return nil, err
			}
		}

		credits = append(credits, credit)
	}

	return credits, rows.Err()
}

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var (
		transfer        domain.Transfer
		state           string
		rejectionReason string
	)

	err := row.Scan(
		&transfer.ID,
		&transfer.Ledger,
		&transfer.ExecutionCondition,
		&transfer.CancellationCondition,
		&transfer.ExpiresAt,
		&state,
		&rejectionReason,
		&transfer.Fulfillment,
		&transfer.Timeline.ProposedAt,
		&transfer.Timeline.PreparedAt,
		&transfer.Timeline.ExecutedAt,
		&transfer.Timeline.RejectedAt,
		&transfer.Version,
		&transfer.CreatedAt,
		&transfer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	transfer.State = domain.TransferState(state)
	transfer.RejectionReason = domain.RejectionReason(rejectionReason)

	return &transfer, nil
}

func marshalMemo(memo map[string]any) ([]byte, error) {
	if memo == nil {
		return nil, nil
	}
	return json.Marshal(memo)
}

func unmarshalMemo(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var memo map[string]any
	if err := json.Unmarshal(raw, &memo); err != nil {
		return nil, err
	}
	return memo, nil
}

func marshalRejectionMessage(message *domain.RejectionMessage) ([]byte, error) {
	if message == nil {
		return nil, nil
	}
	return json.Marshal(message)
}

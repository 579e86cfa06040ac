package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/escrowd/escrowd/internal/domain"
	"github.com/escrowd/escrowd/internal/infrastructure/metrics"
)

// AmountSpec bounds the precision and scale of accepted amounts.
type AmountSpec struct {
	Precision int32
	Scale     int32
}

// DefaultAmountSpec mirrors the ledger's historical default of ten
// significant digits with two decimal places.
var DefaultAmountSpec = AmountSpec{Precision: 10, Scale: 2}

// Validate checks an amount against the configured bounds.
func (s AmountSpec) Validate(amount decimal.Decimal) error {
	if amount.Exponent() < -s.Scale {
		return domain.ErrUnprocessable
	}

	digits := strings.ReplaceAll(strings.TrimLeft(amount.Abs().String(), "0."), ".", "")
	if int32(len(digits)) > s.Precision {
		return domain.ErrUnprocessable
	}

	return nil
}

// TransferUseCase is the conditional-transfer state machine. It validates
// proposed transfers, moves funds through the escrow hold account, applies
// fulfillment and rejection transitions, and records pending notifications in
// the same transaction as every committed transition.
type TransferUseCase struct {
	txManager    TransactionManager
	ledger       *Ledger
	transferRepo TransferRepository
	outboxRepo   OutboxRepository
	verifier     ConditionVerifier
	idGen        IDGenerator
	amounts      AmountSpec
	metrics      *metrics.Metrics
}

// NewTransferUseCase creates a new TransferUseCase.
func NewTransferUseCase(
	txManager TransactionManager,
	ledger *Ledger,
	transferRepo TransferRepository,
	outboxRepo OutboxRepository,
	verifier ConditionVerifier,
	idGen IDGenerator,
	amounts AmountSpec,
	m *metrics.Metrics,
) *TransferUseCase {
	if verifier == nil {
		verifier = PreimageVerifier{}
	}

	return &TransferUseCase{
		txManager:    txManager,
		ledger:       ledger,
		transferRepo: transferRepo,
		outboxRepo:   outboxRepo,
		verifier:     verifier,
		idGen:        idGen,
		amounts:      amounts,
		metrics:      m,
	}
}

// PreimageVerifier verifies preimage-sha-256 crypto-conditions.
type PreimageVerifier struct{}

// Verify implements ConditionVerifier.
func (PreimageVerifier) Verify(conditionURI, fulfillment string) bool {
	return domain.VerifyFulfillment(conditionURI, fulfillment)
}

// PrepareTransfer proposes a transfer under a client-assigned ID. Conditional
// transfers reserve the debit side into the hold account and become prepared;
// unconditional transfers settle in full and become executed immediately.
// Re-submitting an identical body is an idempotent no-op returning the stored
// record.
func (uc *TransferUseCase) PrepareTransfer(ctx context.Context, transfer *domain.Transfer, principal domain.Principal) (*domain.Transfer, error) {
	if err := uc.validateProposal(transfer); err != nil {
		return nil, err
	}

	for _, d := range transfer.Debits {
		if !principal.CanDebit(d.Account) {
			return nil, domain.ErrDebitUnauthorized
		}
	}

	// Idempotent resubmission check before any funds move.
	existing, err := uc.transferRepo.GetByID(ctx, transfer.ID)
	if err == nil {
		if existing.EquivalentRequest(transfer) {
			return existing, nil
		}
		return nil, domain.ErrInvalidModification
	}
	if !errors.Is(err, domain.ErrTransferNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	if transfer.IsExpired(now) {
		return nil, domain.ErrUnprocessable
	}

	transfer.Timeline = domain.Timeline{ProposedAt: now}
	transfer.CreatedAt = now
	transfer.UpdatedAt = now

	var (
		adjustments []domain.Adjustment
		eventType   string
	)

	if transfer.IsConditional() {
		// Escrow path: reserve only the debit side.
		for _, d := range transfer.Debits {
			adjustments = append(adjustments, domain.Adjustment{Account: d.Account, Delta: d.Amount.Neg()})
		}
		adjustments = append(adjustments, domain.Adjustment{Account: domain.HoldAccountName, Delta: transfer.TotalDebits()})

		transfer.State = domain.TransferStatePrepared
		transfer.Timeline.PreparedAt = &now
		eventType = domain.EventTypeTransferPrepared
	} else {
		// Fast path: fully settle now.
		for _, d := range transfer.Debits {
			adjustments = append(adjustments, domain.Adjustment{Account: d.Account, Delta: d.Amount.Neg()})
		}
		for _, c := range transfer.Credits {
			adjustments = append(adjustments, domain.Adjustment{Account: c.Account, Delta: c.Amount})
		}

		transfer.State = domain.TransferStateExecuted
		transfer.Timeline.ExecutedAt = &now
		eventType = domain.EventTypeTransferExecuted
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.ledger.Apply(txCtx, tx, transfer.ID, adjustments, now); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrUnprocessable
		}
		return nil, err
	}

	if err := uc.transferRepo.Insert(txCtx, tx, transfer); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost a race against a concurrent submission of the same ID.
			return uc.resolveDuplicate(ctx, transfer)
		}
		return nil, err
	}

	if err := uc.recordEvent(txCtx, tx, transfer, eventType, "", now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		if transfer.State == domain.TransferStateExecuted {
			uc.metrics.TransfersExecuted.Inc()
		} else {
			uc.metrics.TransfersPrepared.Inc()
		}
	}

	return transfer, nil
}

func (uc *TransferUseCase) validateProposal(transfer *domain.Transfer) error {
	if err := transfer.Validate(); err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) || errors.Is(err, domain.ErrNotBalanced) {
			return domain.ErrUnprocessable
		}
		return err
	}

	for _, d := range transfer.Debits {
		if err := uc.amounts.Validate(d.Amount); err != nil {
			return err
		}
	}
	for _, c := range transfer.Credits {
		if err := uc.amounts.Validate(c.Amount); err != nil {
			return err
		}
	}

	if transfer.ExecutionCondition != "" {
		if _, err := domain.ParseCondition(transfer.ExecutionCondition); err != nil {
			return domain.ErrUnprocessable
		}
	}
	if transfer.CancellationCondition != "" {
		if _, err := domain.ParseCondition(transfer.CancellationCondition); err != nil {
			return domain.ErrUnprocessable
		}
	}

	return nil
}

func (uc *TransferUseCase) resolveDuplicate(ctx context.Context, transfer *domain.Transfer) (*domain.Transfer, error) {
	existing, err := uc.transferRepo.GetByID(ctx, transfer.ID)
	if err != nil {
		return nil, domain.ErrConflict
	}

	if existing.EquivalentRequest(transfer) {
		return existing, nil
	}

	return nil, domain.ErrInvalidModification
}

// FulfillTransfer executes a prepared transfer by presenting a fulfillment
// for its execution condition. Any party may deliver a valid fulfillment.
// Credits already rejected keep their reversed funds; only outstanding
// credits are paid out.
func (uc *TransferUseCase) FulfillTransfer(ctx context.Context, id, fulfillment string, principal domain.Principal) (*domain.Transfer, error) {
	var (
		result *domain.Transfer
		err    error
	)

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		result, err = uc.fulfillOnce(ctx, id, fulfillment)
		if !errors.Is(err, domain.ErrConflict) {
			break
		}
	}

	if err == nil && uc.metrics != nil {
		uc.metrics.TransfersExecuted.Inc()
	}

	return result, err
}

func (uc *TransferUseCase) fulfillOnce(ctx context.Context, id, fulfillment string) (*domain.Transfer, error) {
	transfer, err := uc.transferRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if transfer.IsTerminal() {
		return nil, domain.ErrInvalidModification
	}

	if transfer.State != domain.TransferStatePrepared || !transfer.IsConditional() {
		return nil, domain.ErrInvalidModification
	}

	now := time.Now().UTC()
	if transfer.IsExpired(now) {
		// Past-deadline transfers may only be rejected.
		return nil, domain.ErrInvalidModification
	}

	if !uc.verifier.Verify(transfer.ExecutionCondition, fulfillment) {
		return nil, domain.ErrUnmetCondition
	}

	priorState := transfer.State

	var adjustments []domain.Adjustment

	payout := decimal.Zero
	for _, c := range transfer.Credits {
		if c.Rejected {
			continue
		}
		adjustments = append(adjustments, domain.Adjustment{Account: c.Account, Delta: c.Amount})
		payout = payout.Add(c.Amount)
	}
	adjustments = append(adjustments, domain.Adjustment{Account: domain.HoldAccountName, Delta: payout.Neg()})

	transfer.State = domain.TransferStateExecuted
	transfer.Fulfillment = fulfillment
	transfer.Timeline.ExecutedAt = &now
	transfer.UpdatedAt = now

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// The versioned row update goes first: a writer holding a stale read
	// loses here before any balance work happens.
	if err := uc.transferRepo.Update(txCtx, tx, transfer, priorState); err != nil {
		return nil, err
	}

	if err := uc.ledger.Apply(txCtx, tx, transfer.ID, adjustments, now); err != nil {
		return nil, err
	}

	if err := uc.recordEvent(txCtx, tx, transfer, domain.EventTypeTransferExecuted, "", now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return transfer, nil
}

// RejectTransferCredit rejects the credit held by the principal. Only the
// exact credit holder may reject a credit, one time. The credit's share is
// returned to the debtors pro rata immediately; the transfer as a whole only
// becomes rejected once every credit has been rejected.
func (uc *TransferUseCase) RejectTransferCredit(ctx context.Context, id string, message *domain.RejectionMessage, principal domain.Principal) (*domain.Transfer, error) {
	var (
		result *domain.Transfer
		err    error
	)

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		result, err = uc.rejectOnce(ctx, id, message, principal)
		if !errors.Is(err, domain.ErrConflict) {
			break
		}
	}

	if err == nil && uc.metrics != nil {
		uc.metrics.CreditsRejected.Inc()
		if result.State == domain.TransferStateRejected {
			uc.metrics.TransfersRejected.Inc()
		}
	}

	return result, err
}

func (uc *TransferUseCase) rejectOnce(ctx context.Context, id string, message *domain.RejectionMessage, principal domain.Principal) (*domain.Transfer, error) {
	transfer, err := uc.transferRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// The holder check comes first: admins, debtors and other creditors get
	// an authorization error, not a state error.
	idx := transfer.CreditIndex(principal.Name)
	if idx < 0 {
		return nil, domain.ErrRejectUnauthorized
	}

	if transfer.IsTerminal() || transfer.Credits[idx].Rejected {
		return nil, domain.ErrInvalidModification
	}

	now := time.Now().UTC()
	priorState := transfer.State

	credit := &transfer.Credits[idx]
	credit.Rejected = true
	credit.RejectionMessage = message
	transfer.UpdatedAt = now

	// Return this credit's share of the escrow to the debtors.
	adjustments := []domain.Adjustment{
		{Account: domain.HoldAccountName, Delta: credit.Amount.Neg()},
	}
	shares := splitAcrossDebits(credit.Amount, transfer.Debits, uc.amounts.Scale)
	for i, d := range transfer.Debits {
		adjustments = append(adjustments, domain.Adjustment{Account: d.Account, Delta: shares[i]})
	}

	terminal := transfer.AllCreditsRejected()
	if terminal {
		transfer.State = domain.TransferStateRejected
		transfer.RejectionReason = domain.RejectionReasonCancelled
		transfer.Timeline.RejectedAt = &now
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// A partial rejection keeps the transfer prepared, so the state column
	// alone cannot arbitrate this race; the version check in Update does.
	if err := uc.transferRepo.Update(txCtx, tx, transfer, priorState); err != nil {
		return nil, err
	}

	if err := uc.ledger.Apply(txCtx, tx, transfer.ID, adjustments, now); err != nil {
		return nil, err
	}

	if err := uc.recordEvent(txCtx, tx, transfer, domain.EventTypeCreditRejected, credit.Account, now); err != nil {
		return nil, err
	}
	if terminal {
		if err := uc.recordEvent(txCtx, tx, transfer, domain.EventTypeTransferRejected, "", now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return transfer, nil
}

// ExpireTransfer rejects a non-terminal transfer whose deadline has passed,
// returning all outstanding escrow to the debtors. It is idempotent: calling
// it on a terminal or not-yet-due transfer is a no-op.
func (uc *TransferUseCase) ExpireTransfer(ctx context.Context, id string) error {
	var err error

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = uc.expireOnce(ctx, id)
		if !errors.Is(err, domain.ErrConflict) {
			break
		}
	}

	if err == nil && uc.metrics != nil {
		uc.metrics.TransfersExpired.Inc()
	}

	return err
}

func (uc *TransferUseCase) expireOnce(ctx context.Context, id string) error {
	transfer, err := uc.transferRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if transfer.IsTerminal() {
		return nil
	}

	now := time.Now().UTC()
	if !transfer.IsExpired(now) {
		return nil
	}

	priorState := transfer.State

	outstanding := decimal.Zero
	for i := range transfer.Credits {
		if transfer.Credits[i].Rejected {
			continue
		}
		transfer.Credits[i].Rejected = true
		outstanding = outstanding.Add(transfer.Credits[i].Amount)
	}

	adjustments := []domain.Adjustment{
		{Account: domain.HoldAccountName, Delta: outstanding.Neg()},
	}
	shares := splitAcrossDebits(outstanding, transfer.Debits, uc.amounts.Scale)
	for i, d := range transfer.Debits {
		adjustments = append(adjustments, domain.Adjustment{Account: d.Account, Delta: shares[i]})
	}

	transfer.State = domain.TransferStateRejected
	transfer.RejectionReason = domain.RejectionReasonExpired
	transfer.Timeline.RejectedAt = &now
	transfer.UpdatedAt = now

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.transferRepo.Update(txCtx, tx, transfer, priorState); err != nil {
		return err
	}

	if err := uc.ledger.Apply(txCtx, tx, transfer.ID, adjustments, now); err != nil {
		return err
	}

	if err := uc.recordEvent(txCtx, tx, transfer, domain.EventTypeTransferRejected, "", now); err != nil {
		return err
	}

	return tx.Commit(txCtx)
}

// GetTransfer retrieves a transfer by ID.
func (uc *TransferUseCase) GetTransfer(ctx context.Context, id string) (*domain.Transfer, error) {
	return uc.transferRepo.GetByID(ctx, id)
}

// ListExpiredIDs returns due transfer IDs for the expiry sweeper.
func (uc *TransferUseCase) ListExpiredIDs(ctx context.Context, asOf time.Time, limit int) ([]string, error) {
	return uc.transferRepo.ListExpiredIDs(ctx, asOf, limit)
}

func (uc *TransferUseCase) recordEvent(ctx context.Context, tx Transaction, transfer *domain.Transfer, eventType, affectedAccount string, now time.Time) error {
	event := &domain.OutboxEvent{
		ID:              uc.idGen.Generate(),
		AggregateID:     transfer.ID,
		AggregateType:   domain.AggregateTypeTransfer,
		EventType:       eventType,
		AffectedAccount: affectedAccount,
		Payload: map[string]any{
			"transfer_id":  transfer.ID,
			"ledger":       transfer.Ledger,
			"state":        string(transfer.State),
			"total_amount": transfer.TotalDebits().String(),
			"occurred_at":  now.Format(time.RFC3339Nano),
		},
		CreatedAt: now,
	}

	if transfer.RejectionReason != "" {
		event.Payload["rejection_reason"] = string(transfer.RejectionReason)
	}
	if affectedAccount != "" {
		event.Payload["affected_account"] = affectedAccount
	}

	return uc.outboxRepo.Create(ctx, tx, event)
}

// splitAcrossDebits divides amount across the debits pro rata by debit share,
// rounding down at the given scale. The rounding remainder goes to the last
// debit so the shares always sum to exactly amount.
func splitAcrossDebits(amount decimal.Decimal, debits []domain.Debit, scale int32) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(debits))
	if len(debits) == 0 {
		return shares
	}

	total := decimal.Zero
	for _, d := range debits {
		total = total.Add(d.Amount)
	}

	allocated := decimal.Zero
	for i := 0; i < len(debits)-1; i++ {
		share := amount.Mul(debits[i].Amount).Div(total).RoundDown(scale)
		shares[i] = share
		allocated = allocated.Add(share)
	}
	shares[len(debits)-1] = amount.Sub(allocated)

	return shares
}

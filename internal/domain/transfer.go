package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferState is the lifecycle state of a transfer.
type TransferState string

const (
	TransferStateProposed TransferState = "proposed"
	TransferStatePrepared TransferState = "prepared"
	TransferStateExecuted TransferState = "executed"
	TransferStateRejected TransferState = "rejected"
)

// IsTerminal reports whether no further transitions are permitted.
func (s TransferState) IsTerminal() bool {
	return s == TransferStateExecuted || s == TransferStateRejected
}

// IsValid checks that the state is one of the closed set.
func (s TransferState) IsValid() bool {
	switch s {
	case TransferStateProposed, TransferStatePrepared, TransferStateExecuted, TransferStateRejected:
		return true
	}
	return false
}

// RejectionReason records why a transfer reached the rejected state.
type RejectionReason string

const (
	RejectionReasonCancelled RejectionReason = "cancelled"
	RejectionReasonExpired   RejectionReason = "expired"
)

// Debit is one funded side of a transfer.
type Debit struct {
	Account string
	Amount  decimal.Decimal
	Memo    map[string]any
}

// Credit is one receiving side of a transfer. Each credit can be individually
// rejected by its holder; the transfer only becomes rejected once every
// credit is.
type Credit struct {
	Account          string
	Amount           decimal.Decimal
	Memo             map[string]any
	Rejected         bool
	RejectionMessage *RejectionMessage
}

// RejectionMessage is the structured message a credit holder supplies when
// rejecting a credit.
type RejectionMessage struct {
	Code           string         `json:"code"`
	Name           string         `json:"name"`
	Message        string         `json:"message"`
	TriggeredBy    string         `json:"triggered_by,omitempty"`
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`
}

// Timeline records the instant each state transition occurred. Each field is
// set exactly once.
type Timeline struct {
	ProposedAt time.Time
	PreparedAt *time.Time
	ExecutedAt *time.Time
	RejectedAt *time.Time
}

// Transfer is a conditional multi-party value transfer. The ID is a
// client-assigned URI and immutable.
type Transfer struct {
	ID                    string
	Ledger                string
	Debits                []Debit
	Credits               []Credit
	ExecutionCondition    string
	CancellationCondition string
	ExpiresAt             *time.Time
	State                 TransferState
	RejectionReason       RejectionReason
	// Fulfillment is the preimage that satisfied ExecutionCondition, recorded
	// when the transfer executes.
	Fulfillment string
	Timeline    Timeline
	// Version is the optimistic concurrency token. Every committed update
	// increments it, so a writer holding a stale read loses even when the
	// state value itself did not change (a partial credit rejection leaves
	// the transfer prepared).
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the structural invariants of a proposed transfer: both
// sides non-empty, all amounts positive, debits and credits balanced.
func (t *Transfer) Validate() error {
	if t.ID == "" {
		return ErrUnprocessable
	}

	if len(t.Debits) == 0 || len(t.Credits) == 0 {
		return ErrUnprocessable
	}

	for _, d := range t.Debits {
		if d.Account == "" {
			return ErrUnprocessable
		}
		if d.Amount.LessThanOrEqual(decimal.Zero) {
			return ErrInvalidAmount
		}
	}

	for _, c := range t.Credits {
		if c.Account == "" {
			return ErrUnprocessable
		}
		if c.Amount.LessThanOrEqual(decimal.Zero) {
			return ErrInvalidAmount
		}
	}

	if !t.TotalDebits().Equal(t.TotalCredits()) {
		return ErrNotBalanced
	}

	return nil
}

// TotalDebits sums the debit side.
func (t *Transfer) TotalDebits() decimal.Decimal {
	total := decimal.Zero
	for _, d := range t.Debits {
		total = total.Add(d.Amount)
	}
	return total
}

// TotalCredits sums the credit side.
func (t *Transfer) TotalCredits() decimal.Decimal {
	total := decimal.Zero
	for _, c := range t.Credits {
		total = total.Add(c.Amount)
	}
	return total
}

// IsTerminal reports whether the transfer reached a terminal state.
func (t *Transfer) IsTerminal() bool {
	return t.State.IsTerminal()
}

// IsConditional reports whether execution is gated on a cryptographic
// condition. Unconditional transfers settle as soon as they are funded.
func (t *Transfer) IsConditional() bool {
	return t.ExecutionCondition != ""
}

// CreditIndex returns the index of the credit held by account, or -1.
func (t *Transfer) CreditIndex(account string) int {
	for i, c := range t.Credits {
		if c.Account == account {
			return i
		}
	}
	return -1
}

// AllCreditsRejected reports whether every credit has been individually
// rejected. Full transfer rejection requires unanimity.
func (t *Transfer) AllCreditsRejected() bool {
	for _, c := range t.Credits {
		if !c.Rejected {
			return false
		}
	}
	return true
}

// IsExpired reports whether the transfer's deadline has passed at the given
// instant. Transfers without a deadline never expire.
func (t *Transfer) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// EquivalentRequest reports whether other carries the same client-settable
// content as t. Re-submitting an identical transfer is an idempotent no-op;
// re-submitting a differing one under the same ID is an invalid modification.
func (t *Transfer) EquivalentRequest(other *Transfer) bool {
	if t.ID != other.ID ||
		t.Ledger != other.Ledger ||
		t.ExecutionCondition != other.ExecutionCondition ||
		t.CancellationCondition != other.CancellationCondition {
		return false
	}

	if (t.ExpiresAt == nil) != (other.ExpiresAt == nil) {
		return false
	}
	if t.ExpiresAt != nil && !t.ExpiresAt.Equal(*other.ExpiresAt) {
		return false
	}

	if len(t.Debits) != len(other.Debits) || len(t.Credits) != len(other.Credits) {
		return false
	}

	for i, d := range t.Debits {
		if d.Account != other.Debits[i].Account || !d.Amount.Equal(other.Debits[i].Amount) {
			return false
		}
	}

	for i, c := range t.Credits {
		if c.Account != other.Credits[i].Account || !c.Amount.Equal(other.Credits[i].Amount) {
			return false
		}
	}

	return true
}

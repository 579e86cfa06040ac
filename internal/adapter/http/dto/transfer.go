package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/escrowd/escrowd/internal/domain"
)

// FundsResource is one debit leg of a transfer on the wire.
type FundsResource struct {
	Account string          `json:"account"`
	Amount  decimal.Decimal `json:"amount"`
	Memo    map[string]any  `json:"memo,omitempty"`
}

// CreditResource is one credit leg of a transfer on the wire.
type CreditResource struct {
	Account          string                   `json:"account"`
	Amount           decimal.Decimal          `json:"amount"`
	Memo             map[string]any           `json:"memo,omitempty"`
	Rejected         bool                     `json:"rejected,omitempty"`
	RejectionMessage *domain.RejectionMessage `json:"rejection_message,omitempty"`
}

// TimelineResource records when each state transition happened.
type TimelineResource struct {
	ProposedAt time.Time  `json:"proposed_at"`
	PreparedAt *time.Time `json:"prepared_at,omitempty"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`
}

// TransferResource is the wire representation of a transfer. The same shape
// is accepted on PUT and returned on GET; state, rejection fields and the
// timeline are server-assigned and ignored on input.
type TransferResource struct {
	ID                    string            `json:"id"`
	Ledger                string            `json:"ledger,omitempty"`
	Debits                []FundsResource   `json:"debits"`
	Credits               []CreditResource  `json:"credits"`
	ExecutionCondition    string            `json:"execution_condition,omitempty"`
	CancellationCondition string            `json:"cancellation_condition,omitempty"`
	ExpiresAt             *time.Time        `json:"expires_at,omitempty"`
	State                 string            `json:"state,omitempty"`
	RejectionReason       string            `json:"rejection_reason,omitempty"`
	Timeline              *TimelineResource `json:"timeline,omitempty"`
}

// ToDomain builds the proposed transfer carried by a PUT body. The id always
// comes from the URL; server-assigned fields in the body are discarded.
func (r *TransferResource) ToDomain(id string) *domain.Transfer {
	debits := make([]domain.Debit, len(r.Debits))
	for i, d := range r.Debits {
		debits[i] = domain.Debit{
			Account: d.Account,
			Amount:  d.Amount,
			Memo:    d.Memo,
		}
	}

	credits := make([]domain.Credit, len(r.Credits))
	for i, c := range r.Credits {
		credits[i] = domain.Credit{
			Account: c.Account,
			Amount:  c.Amount,
			Memo:    c.Memo,
		}
	}

	return &domain.Transfer{
		ID:                    id,
		Ledger:                r.Ledger,
		Debits:                debits,
		Credits:               credits,
		ExecutionCondition:    r.ExecutionCondition,
		CancellationCondition: r.CancellationCondition,
		ExpiresAt:             r.ExpiresAt,
	}
}

// TransferFromDomain converts a domain transfer to its wire representation.
func TransferFromDomain(t *domain.Transfer) *TransferResource {
	debits := make([]FundsResource, len(t.Debits))
	for i, d := range t.Debits {
		debits[i] = FundsResource{
			Account: d.Account,
			Amount:  d.Amount,
			Memo:    d.Memo,
		}
	}

	credits := make([]CreditResource, len(t.Credits))
	for i, c := range t.Credits {
		credits[i] = CreditResource{
			Account:          c.Account,
			Amount:           c.Amount,
			Memo:             c.Memo,
			Rejected:         c.Rejected,
			RejectionMessage: c.RejectionMessage,
		}
	}

	return &TransferResource{
		ID:                    t.ID,
		Ledger:                t.Ledger,
		Debits:                debits,
		Credits:               credits,
		ExecutionCondition:    t.ExecutionCondition,
		CancellationCondition: t.CancellationCondition,
		ExpiresAt:             t.ExpiresAt,
		State:                 string(t.State),
		RejectionReason:       string(t.RejectionReason),
		Timeline: &TimelineResource{
			ProposedAt: t.Timeline.ProposedAt,
			PreparedAt: t.Timeline.PreparedAt,
			ExecutedAt: t.Timeline.ExecutedAt,
			RejectedAt: t.Timeline.RejectedAt,
		},
	}
}

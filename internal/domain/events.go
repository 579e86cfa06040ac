package domain

import "time"

// Event types
const (
	EventTypeTransferProposed = "transfer.proposed"
	EventTypeTransferPrepared = "transfer.prepared"
	EventTypeTransferExecuted = "transfer.executed"
	EventTypeTransferRejected = "transfer.rejected"
	EventTypeCreditRejected   = "transfer.credit_rejected"
)

// Aggregate types
const (
	AggregateTypeTransfer = "transfer"
)

// OutboxEvent is a pending notification, persisted in the same transaction as
// the transition it describes so that no committed transition goes
// unannounced.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	// AffectedAccount scopes the event to one account when set (per-credit
	// rejections); empty means the transfer as a whole.
	AffectedAccount string
	Payload         map[string]any
	CreatedAt       time.Time
	PublishedAt     *time.Time
	Published       bool
}

// TransferEventPayload is the snapshot carried by transfer notifications.
type TransferEventPayload struct {
	TransferID      string `json:"transfer_id"`
	Ledger          string `json:"ledger"`
	State           string `json:"state"`
	TotalAmount     string `json:"total_amount"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	AffectedAccount string `json:"affected_account,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}

package postgres

import (
	"context"
	"time"

	"github.com/escrowd/escrowd/internal/domain"
	"github.com/escrowd/escrowd/internal/usecase"
)

// NullOutboxRepository discards notification events. It stands in for the
// real outbox when notifications are disabled, so transfer writes skip the
// outbox insert entirely.
type NullOutboxRepository struct{}

// NewNullOutboxRepository creates a no-op outbox repository.
func NewNullOutboxRepository() *NullOutboxRepository {
	return &NullOutboxRepository{}
}

func (r *NullOutboxRepository) Create(_ context.Context, _ usecase.Transaction, _ *domain.OutboxEvent) error {
	return nil
}

func (r *NullOutboxRepository) GetUnpublished(_ context.Context, _ int) ([]*domain.OutboxEvent, error) {
	return nil, nil
}

func (r *NullOutboxRepository) MarkPublished(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func (r *NullOutboxRepository) DeletePublished(_ context.Context, _ time.Time) error {
	return nil
}

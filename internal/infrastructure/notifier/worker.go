// Package notifier delivers committed transfer events to subscribers. Events
// are read from the transactional outbox, so delivery is at-least-once and
// never announces a transition that did not commit.
package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/escrowd/escrowd/internal/domain"
	"github.com/escrowd/escrowd/internal/infrastructure/metrics"
	"github.com/escrowd/escrowd/internal/usecase"
)

// Publisher delivers a single encoded event to an external system.
type Publisher interface {
	Publish(ctx context.Context, event *domain.OutboxEvent, body []byte) error
}

// Config for Worker.
type Config struct {
	OutboxRepo usecase.OutboxRepository
	Publisher  Publisher
	Signer     *Signer
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	BatchSize  int
	Interval   time.Duration
	Retention  time.Duration
}

// Worker polls the outbox and publishes pending events.
type Worker struct {
	outboxRepo usecase.OutboxRepository
	publisher  Publisher
	signer     *Signer
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	batchSize  int
	interval   time.Duration
	retention  time.Duration
}

// NewWorker creates a new Worker.
func NewWorker(cfg Config) *Worker {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	if cfg.Retention == 0 {
		cfg.Retention = 24 * time.Hour
	}

	return &Worker{
		outboxRepo: cfg.OutboxRepo,
		publisher:  cfg.Publisher,
		signer:     cfg.Signer,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		batchSize:  cfg.BatchSize,
		interval:   cfg.Interval,
		retention:  cfg.Retention,
	}
}

// Start runs the polling loop until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().
		Int("batch_size", w.batchSize).
		Dur("interval", w.interval).
		Msg("notifier started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if err := w.ProcessOnce(ctx); err != nil {
		w.logger.Error().Err(err).Msg("failed to process outbox")
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("notifier shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessOnce(ctx); err != nil {
				w.logger.Error().Err(err).Msg("failed to process outbox")
			}
		}
	}
}

// ProcessOnce publishes one batch of pending events and prunes delivered
// events past the retention window.
func (w *Worker) ProcessOnce(ctx context.Context) error {
	events, err := w.outboxRepo.GetUnpublished(ctx, w.batchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		if err := w.publishEvent(ctx, event); err != nil {
			w.logger.Error().
				Err(err).
				Str("event_id", event.ID).
				Str("event_type", event.EventType).
				Msg("failed to publish event")
			if w.metrics != nil {
				w.metrics.PublishErrors.Inc()
			}
			// Leave the event pending; it is retried on the next pass.
			continue
		}

		if err := w.outboxRepo.MarkPublished(ctx, event.ID, time.Now().UTC()); err != nil {
			// Do not abort: re-publishing on the next pass is acceptable,
			// delivery is at-least-once.
			w.logger.Error().
				Err(err).
				Str("event_id", event.ID).
				Msg("failed to mark event published")
		}

		if w.metrics != nil {
			w.metrics.EventsPublished.WithLabelValues(event.EventType).Inc()
		}
	}

	return w.outboxRepo.DeletePublished(ctx, time.Now().UTC().Add(-w.retention))
}

func (w *Worker) publishEvent(ctx context.Context, event *domain.OutboxEvent) error {
	body, err := EncodeEvent(event, w.signer)
	if err != nil {
		return err
	}

	return w.publisher.Publish(ctx, event, body)
}

// EncodeEvent renders the wire form of a notification: the event metadata and
// payload, plus a detached signature when a signing key is configured.
func EncodeEvent(event *domain.OutboxEvent, signer *Signer) ([]byte, error) {
	envelope := map[string]any{
		"id":       event.ID,
		"type":     event.EventType,
		"resource": event.Payload,
	}
	if event.AffectedAccount != "" {
		envelope["account"] = event.AffectedAccount
	}

	if signer != nil {
		payload, err := json.Marshal(event.Payload)
		if err != nil {
			return nil, err
		}
		envelope["signature"] = signer.Sign(payload)
	}

	return json.Marshal(envelope)
}

// LogPublisher writes events to the log instead of a broker. Used when no
// AMQP URL is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event *domain.OutboxEvent, body []byte) error {
	p.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Str("aggregate_id", event.AggregateID).
		RawJSON("body", body).
		Msg("event published")

	return nil
}

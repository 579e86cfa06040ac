// Package expiry drives deadline enforcement. Expiry is sweeper-based: a
// transfer past its deadline stays prepared in storage until the sweeper
// rejects it, and read paths treat it as unfulfillable in the meantime.
package expiry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/escrowd/escrowd/internal/infrastructure/metrics"
)

// Expirer is the transfer operation surface the sweeper drives.
type Expirer interface {
	ListExpiredIDs(ctx context.Context, asOf time.Time, limit int) ([]string, error)
	ExpireTransfer(ctx context.Context, id string) error
}

// Retrier re-runs an operation on transient database failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Config for Sweeper.
type Config struct {
	Expirer   Expirer
	Retrier   Retrier
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	Interval  time.Duration
	BatchSize int
}

// Sweeper periodically rejects transfers whose deadline has passed.
type Sweeper struct {
	expirer   Expirer
	retrier   Retrier
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	batchSize int
}

// NewSweeper creates a new Sweeper.
func NewSweeper(cfg Config) *Sweeper {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}

	return &Sweeper{
		expirer:   cfg.Expirer,
		retrier:   cfg.Retrier,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Int("batch_size", s.batchSize).
		Msg("expiry sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.SweepOnce(ctx); err != nil {
		s.logger.Error().Err(err).Msg("sweep failed")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("expiry sweeper shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// SweepOnce expires one batch of due transfers. Each transfer is expired
// independently so one failure does not block the rest of the batch.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	start := time.Now()

	ids, err := s.expirer.ListExpiredIDs(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		return err
	}

	for _, id := range ids {
		expire := func() error { return s.expirer.ExpireTransfer(ctx, id) }

		if s.retrier != nil {
			err = s.retrier.Retry(ctx, expire)
		} else {
			err = expire()
		}
		if err != nil {
			s.logger.Error().Err(err).Str("transfer_id", id).Msg("failed to expire transfer")
			continue
		}

		s.logger.Info().Str("transfer_id", id).Msg("transfer expired")
	}

	if s.metrics != nil {
		s.metrics.SweepsTotal.Inc()
		s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}

	return nil
}

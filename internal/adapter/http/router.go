package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/escrowd/escrowd/internal/adapter/http/handler"
	"github.com/escrowd/escrowd/internal/adapter/http/middleware"
	"github.com/escrowd/escrowd/internal/infrastructure/metrics"
	"github.com/escrowd/escrowd/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	TransferHandler  *handler.TransferHandler
	AccountHandler   *handler.AccountHandler
	EntryHandler     *handler.EntryHandler
	LedgerHandler    *handler.LedgerHandler
	HealthHandler    *handler.HealthHandler
	Auth             *middleware.AuthMiddleware
	IdempotencyStore usecase.IdempotencyStore
	RateLimiter      *middleware.RateLimiter
	Logger           zerolog.Logger
	Metrics          *metrics.Metrics
}

// NewRouter creates the HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	if cfg.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(cfg.Metrics).Wrap)
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", cfg.LedgerHandler.Metadata)

	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth.Wrap)
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore).Wrap)
		}

		r.Route("/transfers", func(r chi.Router) {
			r.Put("/{id}", cfg.TransferHandler.Put)
			r.Get("/{id}", cfg.TransferHandler.Get)
			r.Put("/{id}/fulfillment", cfg.TransferHandler.PutFulfillment)
			r.Get("/{id}/fulfillment", cfg.TransferHandler.GetFulfillment)
			r.Put("/{id}/rejection", cfg.TransferHandler.PutRejection)
			r.Get("/{id}/entries", cfg.EntryHandler.ListByTransfer)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", cfg.AccountHandler.List)
			r.Put("/{name}", cfg.AccountHandler.Put)
			r.Get("/{name}", cfg.AccountHandler.Get)
			r.Get("/{name}/entries", cfg.EntryHandler.ListByAccount)
		})

		r.Get("/consistency", cfg.LedgerHandler.Consistency)
	})

	return r
}

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bcnelson/position-admin/internal/api/handler"
	"github.com/bcnelson/position-admin/internal/api/middleware"
	"github.com/bcnelson/position-admin/internal/service"
)

// Options holds the dependencies of the top-level router.
type Options struct {
	// Web is the admin console, mounted at the root.
	Web  http.Handler
	Sync *service.SyncService

	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Meter records request metrics. Nil disables them.
	Meter  metric.Meter
	Logger *zap.Logger

	// ExportLimiter throttles the sync-out export.
	ExportLimiter *rate.Limiter
	// ExportAPIKey, when set, must accompany sync-out requests.
	ExportAPIKey string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(opts Options) (http.Handler, error) {
	if opts.Web == nil || opts.Sync == nil {
		return nil, fmt.Errorf("api: web handler and sync service are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Meter == nil {
		opts.Meter = noop.NewMeterProvider().Meter("http")
	}
	if opts.ExportLimiter == nil {
		opts.ExportLimiter = rate.NewLimiter(rate.Inf, 0)
	}

	metrics, err := middleware.Metrics(opts.Meter)
	if err != nil {
		return nil, fmt.Errorf("creating request metrics: %w", err)
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(opts.Logger))
	r.Use(metrics)

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	// Position export for other servers
	syncHandler := handler.NewSyncHandler(opts.Sync, opts.Logger)
	r.With(
		middleware.RateLimit(opts.ExportLimiter),
		middleware.SharedKey(opts.ExportAPIKey),
	).Get("/positions/sync-out", syncHandler.Export)

	// Mount web UI (serves HTML)
	r.Mount("/", opts.Web)

	return r, nil
}

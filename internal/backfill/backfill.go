// Package backfill repairs denormalized position fields in capped batches.
//
// Every routine copies data from the rows a position references (organization,
// candidate, office, measure, politician, election) onto the position itself,
// writes only rows whose values changed, and stops after the configured number
// of writes. A failed row is logged and counted; the routine moves on.
package backfill

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/storage"
)

const (
	defaultBatchSize           = 500
	defaultPoliticianBatchSize = 10
)

// Result counts what one routine did to one table.
type Result struct {
	Examined int
	Updated  int
	Failed   int
}

// Add accumulates other into r.
func (r *Result) Add(other Result) {
	r.Examined += other.Examined
	r.Updated += other.Updated
	r.Failed += other.Failed
}

// Options configures a Service.
type Options struct {
	// BatchSize caps the rows written per routine run.
	BatchSize int
	// PoliticianBatchSize caps the distinct candidates examined per politician link run.
	PoliticianBatchSize int
	// Meter records row counters. Nil disables metrics.
	Meter metric.Meter
}

// Service runs backfill routines against a store.
type Service struct {
	store               storage.Storage
	logger              *zap.Logger
	batchSize           int
	politicianBatchSize int

	rowsUpdated metric.Int64Counter
	rowErrors   metric.Int64Counter
}

// NewService creates a backfill service.
func NewService(store storage.Storage, logger *zap.Logger, opts Options) (*Service, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.PoliticianBatchSize <= 0 {
		opts.PoliticianBatchSize = defaultPoliticianBatchSize
	}
	meter := opts.Meter
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("backfill")
	}

	rowsUpdated, err := meter.Int64Counter("backfill_rows_updated",
		metric.WithDescription("Rows written by backfill routines"))
	if err != nil {
		return nil, err
	}
	rowErrors, err := meter.Int64Counter("backfill_row_errors",
		metric.WithDescription("Rows a backfill routine failed to read or write"))
	if err != nil {
		return nil, err
	}

	return &Service{
		store:               store,
		logger:              logger.Named("backfill"),
		batchSize:           opts.BatchSize,
		politicianBatchSize: opts.PoliticianBatchSize,
		rowsUpdated:         rowsUpdated,
		rowErrors:           rowErrors,
	}, nil
}

// BatchSize returns the write cap applied to each routine run.
func (s *Service) BatchSize() int {
	return s.batchSize
}

// savePosition writes p and records the outcome in res.
func (s *Service) savePosition(ctx context.Context, routine string, vis domain.Visibility, p *domain.Position, res *Result) {
	p.DateLastChanged = time.Now().UTC()
	if err := s.store.UpdatePosition(ctx, vis, p); err != nil {
		s.rowFailed(ctx, routine, res, err,
			zap.String("we_vote_id", p.WeVoteID), zap.Stringer("visibility", vis))
		return
	}
	res.Updated++
	s.rowsUpdated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("routine", routine),
		attribute.String("table", vis.Table())))
}

func (s *Service) rowFailed(ctx context.Context, routine string, res *Result, err error, fields ...zap.Field) {
	res.Failed++
	s.rowErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("routine", routine)))
	s.logger.Warn("backfill row failed",
		append(fields, zap.String("routine", routine), zap.Error(err))...)
}

// lookupCache memoizes a by-key lookup for the length of one routine run.
// Misses are remembered too, so each distinct key is fetched at most once.
type lookupCache[K comparable, V any] struct {
	fetch   func(context.Context, K) (V, error)
	found   map[K]V
	missing map[K]bool
}

func newLookupCache[K comparable, V any](fetch func(context.Context, K) (V, error)) *lookupCache[K, V] {
	return &lookupCache[K, V]{
		fetch:   fetch,
		found:   make(map[K]V),
		missing: make(map[K]bool),
	}
}

// get returns the cached value. ok is false when the row does not exist.
func (c *lookupCache[K, V]) get(ctx context.Context, key K) (v V, ok bool, err error) {
	if v, hit := c.found[key]; hit {
		return v, true, nil
	}
	if c.missing[key] {
		return v, false, nil
	}
	v, err = c.fetch(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		c.missing[key] = true
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	c.found[key] = v
	return v, true, nil
}

// put seeds the cache with a value loaded elsewhere.
func (c *lookupCache[K, V]) put(key K, v V) {
	c.found[key] = v
}

func visibilities() []domain.Visibility {
	return []domain.Visibility{domain.Public, domain.FriendsOnly}
}

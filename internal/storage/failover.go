package storage

import (
	"context"
	"errors"
	"time"

	"github.com/riskguard/analyzer/internal/model"
	"github.com/riskguard/analyzer/pkg/observability"
	"github.com/riskguard/analyzer/pkg/resilience"
)

// Failover wraps a primary Repository (Postgres) with a MemoryBackend
// fallback, gated by a circuit breaker so a dead primary doesn't add
// per-call latency once it has already been observed failing (spec §4.2:
// "Fallback is a pure in-memory store ... activated when the primary is
// unreachable").
type Failover struct {
	primary  Repository
	fallback *MemoryBackend
	breaker  *resilience.CircuitBreaker
	logger   observability.Logger
}

// NewFailover builds a Failover repository. logger may be nil.
func NewFailover(primary Repository, fallback *MemoryBackend, logger observability.Logger) *Failover {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	cb := resilience.NewCircuitBreaker("storage-primary", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
	}, logger, observability.NewNoopMetricsClient())
	return &Failover{primary: primary, fallback: fallback, breaker: cb, logger: logger}
}

// run executes fn against the primary behind the circuit breaker; on
// circuit-open or primary failure it falls through to fallback. ErrNotFound
// from the primary is returned as-is and never triggers fallback (a missing
// row is not a primary outage).
func run[T any](f *Failover, primaryFn func() (T, error), fallbackFn func() (T, error)) (T, error) {
	result, err := f.breaker.Execute(context.Background(), func() (interface{}, error) {
		return primaryFn()
	})
	if err == nil {
		return result.(T), nil
	}
	if errors.Is(err, ErrNotFound) {
		var zero T
		return zero, ErrNotFound
	}
	if !errors.Is(err, resilience.ErrCircuitBreakerOpen) {
		f.logger.Warn("storage primary failed, falling back to memory", map[string]interface{}{"error": err.Error()})
	}
	return fallbackFn()
}

func (f *Failover) SetCache(ctx context.Context, entry model.CacheEntry) error {
	_, err := run[struct{}](f,
		func() (struct{}, error) { return struct{}{}, f.primary.SetCache(ctx, entry) },
		func() (struct{}, error) { return struct{}{}, f.fallback.SetCache(ctx, entry) },
	)
	return err
}

func (f *Failover) GetCache(ctx context.Context, key string) (*model.CacheEntry, error) {
	return run[*model.CacheEntry](f,
		func() (*model.CacheEntry, error) { return f.primary.GetCache(ctx, key) },
		func() (*model.CacheEntry, error) { return f.fallback.GetCache(ctx, key) },
	)
}

func (f *Failover) ClearCachePrefix(ctx context.Context, prefix string) (int64, error) {
	return run[int64](f,
		func() (int64, error) { return f.primary.ClearCachePrefix(ctx, prefix) },
		func() (int64, error) { return f.fallback.ClearCachePrefix(ctx, prefix) },
	)
}

func (f *Failover) CreateReport(ctx context.Context, report model.StoredReport) error {
	_, err := run[struct{}](f,
		func() (struct{}, error) { return struct{}{}, f.primary.CreateReport(ctx, report) },
		func() (struct{}, error) { return struct{}{}, f.fallback.CreateReport(ctx, report) },
	)
	return err
}

func (f *Failover) GetReport(ctx context.Context, reportID string) (*model.StoredReport, error) {
	return run[*model.StoredReport](f,
		func() (*model.StoredReport, error) { return f.primary.GetReport(ctx, reportID) },
		func() (*model.StoredReport, error) { return f.fallback.GetReport(ctx, reportID) },
	)
}

func (f *Failover) DeleteReport(ctx context.Context, reportID string) error {
	_, err := run[struct{}](f,
		func() (struct{}, error) { return struct{}{}, f.primary.DeleteReport(ctx, reportID) },
		func() (struct{}, error) { return struct{}{}, f.fallback.DeleteReport(ctx, reportID) },
	)
	return err
}

func (f *Failover) ListReports(ctx context.Context, filter ReportFilter) ([]model.StoredReport, error) {
	return run[[]model.StoredReport](f,
		func() ([]model.StoredReport, error) { return f.primary.ListReports(ctx, filter) },
		func() ([]model.StoredReport, error) { return f.fallback.ListReports(ctx, filter) },
	)
}

func (f *Failover) GetReportsByINN(ctx context.Context, inn string) ([]model.StoredReport, error) {
	return run[[]model.StoredReport](f,
		func() ([]model.StoredReport, error) { return f.primary.GetReportsByINN(ctx, inn) },
		func() ([]model.StoredReport, error) { return f.fallback.GetReportsByINN(ctx, inn) },
	)
}

func (f *Failover) SaveThread(ctx context.Context, thread model.ThreadRecord) error {
	_, err := run[struct{}](f,
		func() (struct{}, error) { return struct{}{}, f.primary.SaveThread(ctx, thread) },
		func() (struct{}, error) { return struct{}{}, f.fallback.SaveThread(ctx, thread) },
	)
	return err
}

func (f *Failover) GetThread(ctx context.Context, threadID string) (*model.ThreadRecord, error) {
	return run[*model.ThreadRecord](f,
		func() (*model.ThreadRecord, error) { return f.primary.GetThread(ctx, threadID) },
		func() (*model.ThreadRecord, error) { return f.fallback.GetThread(ctx, threadID) },
	)
}

func (f *Failover) ListThreads(ctx context.Context, limit int) ([]model.ThreadRecord, error) {
	return run[[]model.ThreadRecord](f,
		func() ([]model.ThreadRecord, error) { return f.primary.ListThreads(ctx, limit) },
		func() ([]model.ThreadRecord, error) { return f.fallback.ListThreads(ctx, limit) },
	)
}

func (f *Failover) ListThreadsByINN(ctx context.Context, inn string, limit int) ([]model.ThreadRecord, error) {
	return run[[]model.ThreadRecord](f,
		func() ([]model.ThreadRecord, error) { return f.primary.ListThreadsByINN(ctx, inn, limit) },
		func() ([]model.ThreadRecord, error) { return f.fallback.ListThreadsByINN(ctx, inn, limit) },
	)
}

func (f *Failover) GetStats(ctx context.Context) (Stats, error) {
	return run[Stats](f,
		func() (Stats, error) { return f.primary.GetStats(ctx) },
		func() (Stats, error) { return f.fallback.GetStats(ctx) },
	)
}

// CleanupExpired always runs against both backends: the primary is the
// durable source of truth and the fallback accumulates writes made while
// degraded, both need periodic eviction.
func (f *Failover) CleanupExpired(ctx context.Context, now time.Time) (int64, int64, error) {
	pc, pr, perr := f.primary.CleanupExpired(ctx, now)
	fc, fr, ferr := f.fallback.CleanupExpired(ctx, now)
	if perr != nil && !errors.Is(perr, resilience.ErrCircuitBreakerOpen) {
		f.logger.Warn("primary cleanup failed", map[string]interface{}{"error": perr.Error()})
	}
	if ferr != nil {
		return pc, pr, ferr
	}
	return pc + fc, pr + fr, nil
}

// StartEvictionLoop runs CleanupExpired on the given interval until ctx is
// cancelled, logging counts each pass (spec §4.2 background eviction).
func (f *Failover) StartEvictionLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cacheEvicted, reportsEvicted, err := f.CleanupExpired(ctx, time.Now())
			if err != nil {
				f.logger.Error("eviction pass failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			f.logger.Info("eviction pass complete", map[string]interface{}{
				"cache_evicted":   cacheEvicted,
				"reports_evicted": reportsEvicted,
			})
		}
	}
}

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/riskguard/analyzer/internal/model"
	"github.com/riskguard/analyzer/pkg/repository/postgres"
)

// PostgresBackend adapts pkg/repository/postgres.AnalysisRepository to
// Repository, translating its ErrNotFound/filter/stats types to this
// package's backend-agnostic ones.
type PostgresBackend struct {
	repo *postgres.AnalysisRepository
}

// NewPostgresBackend wraps an AnalysisRepository.
func NewPostgresBackend(repo *postgres.AnalysisRepository) *PostgresBackend {
	return &PostgresBackend{repo: repo}
}

func translate(err error) error {
	if errors.Is(err, postgres.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (b *PostgresBackend) SetCache(ctx context.Context, entry model.CacheEntry) error {
	return translate(b.repo.SetCache(ctx, entry))
}

func (b *PostgresBackend) GetCache(ctx context.Context, key string) (*model.CacheEntry, error) {
	e, err := b.repo.GetCache(ctx, key)
	return e, translate(err)
}

func (b *PostgresBackend) ClearCachePrefix(ctx context.Context, prefix string) (int64, error) {
	n, err := b.repo.ClearCachePrefix(ctx, prefix)
	return n, translate(err)
}

func (b *PostgresBackend) CreateReport(ctx context.Context, report model.StoredReport) error {
	return translate(b.repo.CreateReport(ctx, report))
}

func (b *PostgresBackend) GetReport(ctx context.Context, reportID string) (*model.StoredReport, error) {
	r, err := b.repo.GetReport(ctx, reportID)
	return r, translate(err)
}

func (b *PostgresBackend) DeleteReport(ctx context.Context, reportID string) error {
	return translate(b.repo.DeleteReport(ctx, reportID))
}

func (b *PostgresBackend) ListReports(ctx context.Context, f ReportFilter) ([]model.StoredReport, error) {
	rows, err := b.repo.ListReports(ctx, postgres.ReportFilter(f))
	return rows, translate(err)
}

func (b *PostgresBackend) GetReportsByINN(ctx context.Context, inn string) ([]model.StoredReport, error) {
	rows, err := b.repo.GetReportsByINN(ctx, inn)
	return rows, translate(err)
}

func (b *PostgresBackend) SaveThread(ctx context.Context, thread model.ThreadRecord) error {
	return translate(b.repo.SaveThread(ctx, thread))
}

func (b *PostgresBackend) GetThread(ctx context.Context, threadID string) (*model.ThreadRecord, error) {
	t, err := b.repo.GetThread(ctx, threadID)
	return t, translate(err)
}

func (b *PostgresBackend) ListThreads(ctx context.Context, limit int) ([]model.ThreadRecord, error) {
	rows, err := b.repo.ListThreads(ctx, limit)
	return rows, translate(err)
}

func (b *PostgresBackend) ListThreadsByINN(ctx context.Context, inn string, limit int) ([]model.ThreadRecord, error) {
	rows, err := b.repo.ListThreadsByINN(ctx, inn, limit)
	return rows, translate(err)
}

func (b *PostgresBackend) GetStats(ctx context.Context) (Stats, error) {
	s, err := b.repo.GetStats(ctx)
	return Stats(s), translate(err)
}

func (b *PostgresBackend) CleanupExpired(ctx context.Context, now time.Time) (int64, int64, error) {
	c, r, err := b.repo.CleanupExpired(ctx, now)
	return c, r, translate(err)
}

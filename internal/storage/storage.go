// Package storage defines the Repository contract shared by every storage
// space named in spec §4.2 (cache, reports, threads) and a pure in-memory
// fallback implementation activated when the primary backend is
// unreachable. The Postgres-backed implementation lives in
// pkg/repository/postgres (AnalysisRepository) and is adapted to this
// interface by PostgresBackend in postgres_adapter.go.
package storage

import (
	"context"
	"time"

	"github.com/riskguard/analyzer/internal/model"
)

// Repository is the storage-space contract every backend implements. Every
// method maps onto one of spec §4.2's named operations.
type Repository interface {
	SetCache(ctx context.Context, entry model.CacheEntry) error
	GetCache(ctx context.Context, key string) (*model.CacheEntry, error)
	ClearCachePrefix(ctx context.Context, prefix string) (int64, error)

	CreateReport(ctx context.Context, report model.StoredReport) error
	GetReport(ctx context.Context, reportID string) (*model.StoredReport, error)
	DeleteReport(ctx context.Context, reportID string) error
	ListReports(ctx context.Context, f ReportFilter) ([]model.StoredReport, error)
	GetReportsByINN(ctx context.Context, inn string) ([]model.StoredReport, error)

	SaveThread(ctx context.Context, thread model.ThreadRecord) error
	GetThread(ctx context.Context, threadID string) (*model.ThreadRecord, error)
	ListThreads(ctx context.Context, limit int) ([]model.ThreadRecord, error)
	ListThreadsByINN(ctx context.Context, inn string, limit int) ([]model.ThreadRecord, error)

	GetStats(ctx context.Context) (Stats, error)
	CleanupExpired(ctx context.Context, now time.Time) (cacheEvicted, reportsEvicted int64, err error)
}

// ReportFilter mirrors postgres.ReportFilter field for field, so
// PostgresBackend converts one to the other directly; Repository callers
// do not need the postgres package.
type ReportFilter struct {
	INN          string
	RiskLevel    model.RiskLevel
	ClientName   string
	DateFrom     *time.Time
	DateTo       *time.Time
	MinRiskScore *int
	MaxRiskScore *int
	Limit        int
	Offset       int
}

// Stats mirrors postgres.StorageStats.
type Stats struct {
	CacheCount   int64 `json:"cache_count"`
	ReportsCount int64 `json:"reports_count"`
	ThreadsCount int64 `json:"threads_count"`
}

// ErrNotFound is returned by Get* methods when no row matches. Backends
// translate their native not-found error to this sentinel.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "storage: not found" }

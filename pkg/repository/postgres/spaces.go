package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/riskguard/analyzer/internal/model"
)

// AnalysisRepository adapts BaseRepository to the three named storage
// spaces of spec §4.2: cache, reports, threads. It is the primary
// (Postgres-backed) implementation of internal/storage.Repository.
type AnalysisRepository struct {
	*BaseRepository
}

// NewAnalysisRepository wraps an already-constructed BaseRepository.
func NewAnalysisRepository(base *BaseRepository) *AnalysisRepository {
	return &AnalysisRepository{BaseRepository: base}
}

// --- cache space ---

// SetCache upserts a cache row with a caller-supplied TTL in seconds
// (spec §4.2 "set_with_ttl"). Values over 1KiB are expected to already be
// compressed by the caller (internal/storage.CompressingCache wraps this).
func (r *AnalysisRepository) SetCache(ctx context.Context, entry model.CacheEntry) error {
	return r.ExecuteQuery(ctx, "cache.set", func(ctx context.Context) error {
		_, err := r.writeDB.ExecContext(ctx, `
			INSERT INTO cache_entries (key, value, ttl_epoch_seconds, created_at, source)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (key) DO UPDATE SET
				value = EXCLUDED.value,
				ttl_epoch_seconds = EXCLUDED.ttl_epoch_seconds,
				created_at = EXCLUDED.created_at,
				source = EXCLUDED.source
		`, entry.Key, entry.Value, entry.TTLEpoch, entry.CreatedAt, entry.Source)
		return r.TranslateError(err, "cache_entries")
	})
}

// GetCache returns the entry iff it is still observable (invariant 5, §3).
func (r *AnalysisRepository) GetCache(ctx context.Context, key string) (*model.CacheEntry, error) {
	var entry model.CacheEntry
	err := r.ExecuteQuery(ctx, "cache.get", func(ctx context.Context) error {
		return r.readDB.GetContext(ctx, &entry, `
			SELECT key, value, ttl_epoch_seconds, created_at, source
			FROM cache_entries WHERE key = $1
		`, key)
	})
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, r.TranslateError(err, "cache_entries")
	}
	if !entry.Observable(time.Now()) {
		return nil, ErrNotFound
	}
	return &entry, nil
}

// ClearCachePrefix deletes every cache row whose key matches prefix+"%" under
// LIKE. A '%' in prefix is escaped; a '_' is not and matches any single
// character. The filter is on the key column, so the ttl and source indexes
// do not serve it.
func (r *AnalysisRepository) ClearCachePrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := r.ExecuteQuery(ctx, "cache.clear_prefix", func(ctx context.Context) error {
		res, err := r.writeDB.ExecContext(ctx, `DELETE FROM cache_entries WHERE key LIKE $1`, strings.ReplaceAll(prefix, "%", "\\%")+"%")
		if err != nil {
			return r.TranslateError(err, "cache_entries")
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}

// EvictExpiredCache deletes every cache row whose ttl has passed, using the
// ttl secondary index (spec §4.2 background eviction).
func (r *AnalysisRepository) EvictExpiredCache(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.ExecuteQuery(ctx, "cache.evict_expired", func(ctx context.Context) error {
		res, err := r.writeDB.ExecContext(ctx, `DELETE FROM cache_entries WHERE ttl_epoch_seconds < $1`, now.Unix())
		if err != nil {
			return r.TranslateError(err, "cache_entries")
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}

// --- reports space ---

// CreateReport persists a StoredReport (spec §4.2, §3 invariant 2:
// ExpiresAt is exactly 30 days after CreatedAt).
func (r *AnalysisRepository) CreateReport(ctx context.Context, report model.StoredReport) error {
	payload, err := json.Marshal(report.ReportData)
	if err != nil {
		return err
	}
	return r.ExecuteQuery(ctx, "reports.create", func(ctx context.Context) error {
		_, err := r.writeDB.ExecContext(ctx, `
			INSERT INTO stored_reports
				(report_id, inn, client_name, report_data, created_at, expires_at, risk_level, risk_score)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, report.ReportID, report.INN, report.ClientName, payload, report.CreatedAt, report.ExpiresAt, report.RiskLevel, report.RiskScore)
		return r.TranslateError(err, "stored_reports")
	})
}

// GetReport fetches one report by id.
func (r *AnalysisRepository) GetReport(ctx context.Context, reportID string) (*model.StoredReport, error) {
	var row reportRow
	err := r.ExecuteQuery(ctx, "reports.get", func(ctx context.Context) error {
		return r.readDB.GetContext(ctx, &row, `
			SELECT report_id, inn, client_name, report_data, created_at, expires_at, risk_level, risk_score
			FROM stored_reports WHERE report_id = $1
		`, reportID)
	})
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, r.TranslateError(err, "stored_reports")
	}
	return row.toModel()
}

// DeleteReport removes a report (admin DELETE /reports/{report_id}).
func (r *AnalysisRepository) DeleteReport(ctx context.Context, reportID string) error {
	return r.ExecuteQuery(ctx, "reports.delete", func(ctx context.Context) error {
		_, err := r.writeDB.ExecContext(ctx, `DELETE FROM stored_reports WHERE report_id = $1`, reportID)
		return r.TranslateError(err, "stored_reports")
	})
}

// ReportFilter narrows GET /reports (spec §6.1).
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

// ListReports applies ReportFilter, using the inn (exact) and client_name
// (case-insensitive substring) indexes named in invariant 6 of §3.
func (r *AnalysisRepository) ListReports(ctx context.Context, f ReportFilter) ([]model.StoredReport, error) {
	query := `SELECT report_id, inn, client_name, report_data, created_at, expires_at, risk_level, risk_score FROM stored_reports WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + itoa(len(args))
	}
	if f.INN != "" {
		query += " AND inn = " + arg(f.INN)
	}
	if f.ClientName != "" {
		query += " AND client_name ILIKE " + arg("%"+f.ClientName+"%")
	}
	if f.RiskLevel != "" {
		query += " AND risk_level = " + arg(f.RiskLevel)
	}
	if f.DateFrom != nil {
		query += " AND created_at >= " + arg(*f.DateFrom)
	}
	if f.DateTo != nil {
		query += " AND created_at <= " + arg(*f.DateTo)
	}
	if f.MinRiskScore != nil {
		query += " AND risk_score >= " + arg(*f.MinRiskScore)
	}
	if f.MaxRiskScore != nil {
		query += " AND risk_score <= " + arg(*f.MaxRiskScore)
	}
	query += " ORDER BY created_at DESC"
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT " + arg(limit) + " OFFSET " + arg(f.Offset)

	var rows []reportRow
	err := r.ExecuteQuery(ctx, "reports.list", func(ctx context.Context) error {
		return r.readDB.SelectContext(ctx, &rows, query, args...)
	})
	if err != nil {
		return nil, r.TranslateError(err, "stored_reports")
	}
	out := make([]model.StoredReport, 0, len(rows))
	for _, row := range rows {
		m, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

// GetReportsByINN uses the exact-match inn index (spec invariant 6, §3).
func (r *AnalysisRepository) GetReportsByINN(ctx context.Context, inn string) ([]model.StoredReport, error) {
	return r.ListReports(ctx, ReportFilter{INN: inn, Limit: 1000})
}

// EvictExpiredReports deletes rows past expires_at via the expires_at index.
func (r *AnalysisRepository) EvictExpiredReports(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.ExecuteQuery(ctx, "reports.evict_expired", func(ctx context.Context) error {
		res, err := r.writeDB.ExecContext(ctx, `DELETE FROM stored_reports WHERE expires_at < $1`, now)
		if err != nil {
			return r.TranslateError(err, "stored_reports")
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}

// --- threads space ---

// SaveThread upserts a ThreadRecord, keyed by task_id for idempotent enqueue
// handling (spec §4.8: "duplicate arrivals update the existing thread").
func (r *AnalysisRepository) SaveThread(ctx context.Context, thread model.ThreadRecord) error {
	payload, err := json.Marshal(thread.ThreadData)
	if err != nil {
		return err
	}
	return r.ExecuteQuery(ctx, "threads.save", func(ctx context.Context) error {
		_, err := r.writeDB.ExecContext(ctx, `
			INSERT INTO thread_records (thread_id, thread_data, created_at, updated_at, client_name, inn)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (thread_id) DO UPDATE SET
				thread_data = EXCLUDED.thread_data,
				updated_at = EXCLUDED.updated_at,
				client_name = EXCLUDED.client_name,
				inn = EXCLUDED.inn
		`, thread.ThreadID, payload, thread.CreatedAt, thread.UpdatedAt, thread.ClientName, thread.INN)
		return r.TranslateError(err, "thread_records")
	})
}

// GetThread fetches one thread snapshot by id.
func (r *AnalysisRepository) GetThread(ctx context.Context, threadID string) (*model.ThreadRecord, error) {
	var row threadRow
	err := r.ExecuteQuery(ctx, "threads.get", func(ctx context.Context) error {
		return r.readDB.GetContext(ctx, &row, `
			SELECT thread_id, thread_data, created_at, updated_at, client_name, inn
			FROM thread_records WHERE thread_id = $1
		`, threadID)
	})
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, r.TranslateError(err, "thread_records")
	}
	return row.toModel()
}

// ListThreads returns up to limit most-recent thread summaries
// (GET /agent/threads, spec §6.1).
func (r *AnalysisRepository) ListThreads(ctx context.Context, limit int) ([]model.ThreadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []threadRow
	err := r.ExecuteQuery(ctx, "threads.list", func(ctx context.Context) error {
		return r.readDB.SelectContext(ctx, &rows, `
			SELECT thread_id, thread_data, created_at, updated_at, client_name, inn
			FROM thread_records ORDER BY updated_at DESC LIMIT $1
		`, limit)
	})
	if err != nil {
		return nil, r.TranslateError(err, "thread_records")
	}
	out := make([]model.ThreadRecord, 0, len(rows))
	for _, row := range rows {
		m, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

// ListThreadsByINN uses the inn secondary index (spec §4.2 typed helpers).
func (r *AnalysisRepository) ListThreadsByINN(ctx context.Context, inn string, limit int) ([]model.ThreadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []threadRow
	err := r.ExecuteQuery(ctx, "threads.list_by_inn", func(ctx context.Context) error {
		return r.readDB.SelectContext(ctx, &rows, `
			SELECT thread_id, thread_data, created_at, updated_at, client_name, inn
			FROM thread_records WHERE inn = $1 ORDER BY updated_at DESC LIMIT $2
		`, inn, limit)
	})
	if err != nil {
		return nil, r.TranslateError(err, "thread_records")
	}
	out := make([]model.ThreadRecord, 0, len(rows))
	for _, row := range rows {
		m, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

// StorageStats backs GET /utility/stats/storage (spec §6.1).
type StorageStats struct {
	CacheCount   int64 `json:"cache_count"`
	ReportsCount int64 `json:"reports_count"`
	ThreadsCount int64 `json:"threads_count"`
}

// GetStats counts rows per space.
func (r *AnalysisRepository) GetStats(ctx context.Context) (StorageStats, error) {
	var stats StorageStats
	err := r.ExecuteQuery(ctx, "storage.stats", func(ctx context.Context) error {
		if err := r.readDB.GetContext(ctx, &stats.CacheCount, `SELECT count(*) FROM cache_entries`); err != nil {
			return r.TranslateError(err, "cache_entries")
		}
		if err := r.readDB.GetContext(ctx, &stats.ReportsCount, `SELECT count(*) FROM stored_reports`); err != nil {
			return r.TranslateError(err, "stored_reports")
		}
		if err := r.readDB.GetContext(ctx, &stats.ThreadsCount, `SELECT count(*) FROM thread_records`); err != nil {
			return r.TranslateError(err, "thread_records")
		}
		return nil
	})
	return stats, err
}

// CleanupExpired runs the §4.2 background eviction for cache and reports in
// one pass, returning counts for logging (spec §4.2 "Eviction is idempotent
// and logs counts").
func (r *AnalysisRepository) CleanupExpired(ctx context.Context, now time.Time) (cacheEvicted, reportsEvicted int64, err error) {
	cacheEvicted, err = r.EvictExpiredCache(ctx, now)
	if err != nil {
		return
	}
	reportsEvicted, err = r.EvictExpiredReports(ctx, now)
	return
}

type reportRow struct {
	ReportID   string    `db:"report_id"`
	INN        string    `db:"inn"`
	ClientName string    `db:"client_name"`
	ReportData []byte    `db:"report_data"`
	CreatedAt  time.Time `db:"created_at"`
	ExpiresAt  time.Time `db:"expires_at"`
	RiskLevel  string    `db:"risk_level"`
	RiskScore  int       `db:"risk_score"`
}

func (row reportRow) toModel() (*model.StoredReport, error) {
	var data model.ClientAnalysisReport
	if err := json.Unmarshal(row.ReportData, &data); err != nil {
		return nil, err
	}
	return &model.StoredReport{
		ReportID:   row.ReportID,
		INN:        row.INN,
		ClientName: row.ClientName,
		ReportData: data,
		CreatedAt:  row.CreatedAt,
		ExpiresAt:  row.ExpiresAt,
		RiskLevel:  model.RiskLevel(row.RiskLevel),
		RiskScore:  row.RiskScore,
	}, nil
}

type threadRow struct {
	ThreadID   string    `db:"thread_id"`
	ThreadData []byte    `db:"thread_data"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
	ClientName string    `db:"client_name"`
	INN        string    `db:"inn"`
}

func (row threadRow) toModel() (*model.ThreadRecord, error) {
	var data model.WorkflowState
	if err := json.Unmarshal(row.ThreadData, &data); err != nil {
		return nil, err
	}
	return &model.ThreadRecord{
		ThreadID:   row.ThreadID,
		ThreadData: data,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
		ClientName: row.ClientName,
		INN:        row.INN,
	}, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

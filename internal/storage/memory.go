package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/riskguard/analyzer/internal/model"
)

// memoryCacheCapacity bounds the in-memory cache space so a runaway
// fallback period can't grow without limit (spec §4.2 "Fallback" backend
// has no durability guarantee but must still be memory-safe).
const memoryCacheCapacity = 10000

// MemoryBackend is the in-memory Fallback storage backend of spec §4.2,
// activated when the primary (Postgres) backend is unreachable. The cache
// space is a bounded LRU (eviction beyond capacity is an acceptable loss
// for a degraded-mode cache); reports and threads are unbounded maps since
// a fallback-mode analysis run must never lose its own report. No space
// survives a process restart.
type MemoryBackend struct {
	mu      sync.RWMutex
	cache   *lru.Cache[string, model.CacheEntry]
	reports map[string]model.StoredReport
	threads map[string]model.ThreadRecord
}

// NewMemoryBackend builds an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	cache, err := lru.New[string, model.CacheEntry](memoryCacheCapacity)
	if err != nil {
		// Only size<=0 returns an error; memoryCacheCapacity is a positive
		// constant, so this is unreachable.
		panic(err)
	}
	return &MemoryBackend{
		cache:   cache,
		reports: make(map[string]model.StoredReport),
		threads: make(map[string]model.ThreadRecord),
	}
}

func (m *MemoryBackend) SetCache(ctx context.Context, entry model.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Add(entry.Key, entry)
	return nil
}

func (m *MemoryBackend) GetCache(ctx context.Context, key string) (*model.CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.cache.Get(key)
	if !ok || !entry.Observable(time.Now()) {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (m *MemoryBackend) ClearCachePrefix(ctx context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range m.cache.Keys() {
		if strings.HasPrefix(k, prefix) {
			m.cache.Remove(k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryBackend) CreateReport(ctx context.Context, report model.StoredReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[report.ReportID] = report
	return nil
}

func (m *MemoryBackend) GetReport(ctx context.Context, reportID string) (*model.StoredReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[reportID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryBackend) DeleteReport(ctx context.Context, reportID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reports, reportID)
	return nil
}

func (m *MemoryBackend) ListReports(ctx context.Context, f ReportFilter) ([]model.StoredReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []model.StoredReport
	for _, r := range m.reports {
		if f.INN != "" && r.INN != f.INN {
			continue
		}
		if f.ClientName != "" && !strings.Contains(strings.ToLower(r.ClientName), strings.ToLower(f.ClientName)) {
			continue
		}
		if f.RiskLevel != "" && r.RiskLevel != f.RiskLevel {
			continue
		}
		if f.DateFrom != nil && r.CreatedAt.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && r.CreatedAt.After(*f.DateTo) {
			continue
		}
		if f.MinRiskScore != nil && r.RiskScore < *f.MinRiskScore {
			continue
		}
		if f.MaxRiskScore != nil && r.RiskScore > *f.MaxRiskScore {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	start := f.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func (m *MemoryBackend) GetReportsByINN(ctx context.Context, inn string) ([]model.StoredReport, error) {
	return m.ListReports(ctx, ReportFilter{INN: inn, Limit: 1000})
}

func (m *MemoryBackend) SaveThread(ctx context.Context, thread model.ThreadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[thread.ThreadID] = thread
	return nil
}

func (m *MemoryBackend) GetThread(ctx context.Context, threadID string) (*model.ThreadRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.threads[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *MemoryBackend) ListThreads(ctx context.Context, limit int) ([]model.ThreadRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	all := make([]model.ThreadRecord, 0, len(m.threads))
	for _, t := range m.threads {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryBackend) ListThreadsByINN(ctx context.Context, inn string, limit int) ([]model.ThreadRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	var matched []model.ThreadRecord
	for _, t := range m.threads {
		if t.INN == inn {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].UpdatedAt.After(matched[j].UpdatedAt) })
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MemoryBackend) GetStats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		CacheCount:   int64(m.cache.Len()),
		ReportsCount: int64(len(m.reports)),
		ThreadsCount: int64(len(m.threads)),
	}, nil
}

func (m *MemoryBackend) CleanupExpired(ctx context.Context, now time.Time) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cacheEvicted, reportsEvicted int64
	for _, k := range m.cache.Keys() {
		v, ok := m.cache.Peek(k)
		if ok && !v.Observable(now) {
			m.cache.Remove(k)
			cacheEvicted++
		}
	}
	for k, v := range m.reports {
		if now.After(v.ExpiresAt) {
			delete(m.reports, k)
			reportsEvicted++
		}
	}
	return cacheEvicted, reportsEvicted, nil
}

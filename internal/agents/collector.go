package agents

import (
	"context"
	"sync"
	"time"

	"github.com/riskguard/analyzer/internal/apperr"
	"github.com/riskguard/analyzer/internal/model"
	"github.com/riskguard/analyzer/internal/providers"
	"github.com/riskguard/analyzer/pkg/observability"
	"github.com/riskguard/analyzer/pkg/resilience"
)

// MaxConcurrentSearches bounds in-flight outbound calls per session
// (spec §6.6 MAX_CONCURRENT_SEARCHES=5).
const MaxConcurrentSearches = 5

// GlobalConcurrencyCap bounds in-flight outbound calls across all sessions
// (spec §5 "a global cap (default 64) across all sessions").
const GlobalConcurrencyCap = 64

// Collector fans out provider calls concurrently and aggregates results
// (spec §4.7).
type Collector struct {
	registry      *providers.RegistryClient
	court         *providers.CourtClient
	analytics     *providers.AnalyticsClient
	searchBasic   *providers.SearchClient
	searchDeep    *providers.SearchClient
	globalBulkhead *resilience.Bulkhead
	logger        observability.Logger
}

// NewCollector builds a Collector. global is the shared cross-session
// concurrency gate (see GlobalBulkhead); pass the same instance to every
// Collector in the process.
func NewCollector(registry *providers.RegistryClient, court *providers.CourtClient, analytics *providers.AnalyticsClient, searchBasic, searchDeep *providers.SearchClient, global *resilience.Bulkhead, logger observability.Logger) *Collector {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Collector{
		registry: registry, court: court, analytics: analytics,
		searchBasic: searchBasic, searchDeep: searchDeep,
		globalBulkhead: global, logger: logger,
	}
}

// GlobalBulkhead builds the process-wide concurrency gate shared across
// every Collector instance. The queue holds up to GlobalConcurrencyCap*4
// calls and backpressure is off: a call facing a full queue waits for room
// rather than being rejected, subject to the caller's context. A queued call
// with no result within QueueTimeout (2 minutes) fails with
// resilience.ErrBulkheadTimeout.
func GlobalBulkhead(logger observability.Logger) *resilience.Bulkhead {
	return resilience.NewBulkhead("collector-global", resilience.BulkheadConfig{
		MaxConcurrentCalls: GlobalConcurrencyCap,
		MaxQueueDepth:      GlobalConcurrencyCap * 4,
		QueueTimeout:       2 * time.Minute,
		EnableBackpressure: false,
	}, logger, nil)
}

// Result is the delta a collecting pass returns to the state machine.
type Result struct {
	SourceData    map[string]model.SourceResultEnvelope
	SearchResults []model.SearchSnippet
	Stats         model.CollectionStats
}

// Collect runs every intent in plan against its provider, respecting the
// per-session and global concurrency bounds, and emits onSourceResult as
// each call completes (in completion order, per spec §5). It returns
// apperr.InsufficientData if both critical sources (registry, analytics)
// fail.
func (c *Collector) Collect(ctx context.Context, clientName, inn string, plan []model.SearchIntent, onSourceResult func(model.SourceResultEnvelope)) (Result, error) {
	start := time.Now()
	sessionSem := make(chan struct{}, MaxConcurrentSearches)

	var mu sync.Mutex
	sourceData := make(map[string]model.SourceResultEnvelope)
	var searchResults []model.SearchSnippet
	var attempted, succeeded, failed int

	var wg sync.WaitGroup
	runCall := func(fn func() model.SourceResultEnvelope) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sessionSem <- struct{}{}
			defer func() { <-sessionSem }()

			result, err := c.globalBulkhead.Execute(ctx, func(ctx context.Context) (interface{}, error) {
				return fn(), nil
			})
			if err != nil {
				env := model.SourceResultEnvelope{Status: model.EnvelopeFailed, Error: err.Error()}
				mu.Lock()
				attempted++
				failed++
				mu.Unlock()
				if onSourceResult != nil {
					onSourceResult(env)
				}
				return
			}
			env := result.(model.SourceResultEnvelope)

			mu.Lock()
			attempted++
			if env.Status == model.EnvelopeSuccess || env.Status == model.EnvelopePartial {
				succeeded++
			} else {
				failed++
			}
			sourceData[env.Source] = env
			mu.Unlock()

			if onSourceResult != nil {
				onSourceResult(env)
			}
		}()
	}

	runCall(func() model.SourceResultEnvelope { return c.registry.Lookup(ctx, clientName, inn) })
	runCall(func() model.SourceResultEnvelope { return c.court.Lookup(ctx, clientName, inn) })
	runCall(func() model.SourceResultEnvelope { return c.analytics.Lookup(ctx, clientName, inn) })

	for i, intent := range plan {
		intent := intent
		engine := c.searchBasic
		if i%2 == 1 {
			engine = c.searchDeep
		}
		runCall(func() model.SourceResultEnvelope {
			env := engine.Search(ctx, intent.Category, intent.Query)
			if env.Status == model.EnvelopeSuccess {
				snippets := extractSnippets(env, intent.Category)
				mu.Lock()
				searchResults = append(searchResults, snippets...)
				mu.Unlock()
			}
			return env
		})
	}

	wg.Wait()

	stats := model.CollectionStats{
		SourcesAttempted: attempted,
		SourcesSucceeded: succeeded,
		SourcesFailed:    failed,
		DurationMS:       time.Since(start).Milliseconds(),
	}

	registryOK := sourceData["registry"].Status == model.EnvelopeSuccess
	analyticsOK := sourceData["analytics"].Status == model.EnvelopeSuccess
	if !registryOK && !analyticsOK {
		return Result{SourceData: sourceData, SearchResults: searchResults, Stats: stats},
			apperr.New(apperr.InsufficientData, "both critical sources (registry, analytics) failed")
	}

	return Result{SourceData: sourceData, SearchResults: searchResults, Stats: stats}, nil
}

func extractSnippets(env model.SourceResultEnvelope, category model.SearchIntentCategory) []model.SearchSnippet {
	items, ok := env.Payload.([]interface{})
	if !ok {
		return nil
	}
	out := make([]model.SearchSnippet, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		title, _ := m["title"].(string)
		text, _ := m["text"].(string)
		url, _ := m["url"].(string)
		out = append(out, model.SearchSnippet{
			Source:    env.Source,
			Category:  category,
			Title:     title,
			Text:      text,
			URL:       url,
			Sentiment: model.Sentiment(classifySentiment(title, text)),
		})
	}
	return out
}

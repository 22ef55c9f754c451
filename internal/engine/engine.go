// Package engine wires every layer of the analysis system into one
// service-context value (spec §9 Design Notes: "replace singletons with
// lazy init... with an explicit service context constructed at startup
// and passed through"). cmd/server and cmd/worker each build one Engine
// and derive their respective entry points from it.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/riskguard/analyzer/internal/agents"
	"github.com/riskguard/analyzer/internal/api"
	"github.com/riskguard/analyzer/internal/config"
	"github.com/riskguard/analyzer/internal/httpcore"
	"github.com/riskguard/analyzer/internal/llm"
	"github.com/riskguard/analyzer/internal/providers"
	domainqueue "github.com/riskguard/analyzer/internal/queue"
	"github.com/riskguard/analyzer/internal/sse"
	"github.com/riskguard/analyzer/internal/storage"
	"github.com/riskguard/analyzer/internal/workflow"
	"github.com/riskguard/analyzer/pkg/common/cache"
	pkgdatabase "github.com/riskguard/analyzer/pkg/database"
	"github.com/riskguard/analyzer/pkg/events"
	"github.com/riskguard/analyzer/pkg/observability"
	pkgqueue "github.com/riskguard/analyzer/pkg/queue"
	"github.com/riskguard/analyzer/pkg/repository/postgres"
	"github.com/riskguard/analyzer/pkg/resilience"
)

// Engine holds every constructed handle. Building one is the only place
// in the system permitted to call every package's constructor.
type Engine struct {
	Config *config.Config
	Logger observability.Logger

	db    *pkgdatabase.Database
	Repo  storage.Repository

	HTTPCore *httpcore.Client
	Bus      events.Bus

	Machine     *workflow.Machine
	SSEAdapter  *sse.Adapter
	Router      *api.Server

	Publisher *domainqueue.Publisher
	Consumer  *domainqueue.Consumer

	collectorBulkhead *resilience.Bulkhead
	dedupCache        cache.Cache
}

// New builds the full dependency graph from cfg. It opens a database
// connection when cfg.Database.Host is set; otherwise storage runs on the
// in-memory backend alone (useful for local development and tests).
func New(ctx context.Context, cfg *config.Config, logger observability.Logger) (*Engine, error) {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}

	metrics := observability.NewNoopMetricsClient()

	repo, db, err := buildStorage(ctx, cfg, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("engine: build storage: %w", err)
	}

	core := httpcore.New(httpcore.Config{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		ResetTimeout:     cfg.CircuitBreakerResetTimeout,
		MaxRetries:       3,
	}, logger, metrics)

	bus := events.NewInMemoryBus(logger)

	registry := providers.NewRegistryClient(cfg.Registry.BaseURL, core, repo)
	court := providers.NewCourtClient(cfg.Court.BaseURL, core, repo)
	analytics := providers.NewAnalyticsClient(cfg.Analytics.BaseURL, core, repo)
	searchBasic := providers.NewSearchBasicClient(cfg.SearchBasic.BaseURL, core, repo)
	searchDeep := providers.NewSearchDeepClient(cfg.SearchDeep.BaseURL, core, repo)

	globalBulkhead := agents.GlobalBulkhead(logger)
	collector := agents.NewCollector(registry, court, analytics, searchBasic, searchDeep, globalBulkhead, logger)
	planner := agents.NewPlanner(logger)
	cascade := buildCascade(cfg, core, logger)
	analyzer := agents.NewAnalyzer(cascade, logger)
	writer := agents.NewWriter(repo, logger)

	machine := workflow.New(planner, collector, analyzer, writer, repo, bus, logger)
	sseAdapter := sse.New(bus, logger)

	dedup := buildDedupCache(cfg, logger)

	var publisher *domainqueue.Publisher
	var consumer *domainqueue.Consumer
	var apiPublisher api.Publisher
	inbox, results, dlq, qerr := buildQueues(ctx, cfg)
	if qerr != nil {
		logger.Warn("engine: queue unavailable, async task submission disabled", map[string]interface{}{"error": qerr.Error()})
	} else {
		publisher = domainqueue.NewPublisher(inbox)
		apiPublisher = publisher
		consumer = domainqueue.NewConsumer(inbox, results, dlq, machine, cfg.MaxConsumers, dedup, cfg.Redis.DedupTTL, logger)
	}

	server := &api.Server{
		Machine:    machine,
		Repo:       repo,
		SSE:        sseAdapter,
		HTTPCore:   core,
		Publisher:  apiPublisher,
		AdminToken: cfg.AdminToken,
		Logger:     logger,
	}

	return &Engine{
		Config: cfg, Logger: logger, db: db, Repo: repo,
		HTTPCore: core, Bus: bus,
		Machine: machine, SSEAdapter: sseAdapter, Router: server,
		Publisher: publisher, Consumer: consumer,
		collectorBulkhead: globalBulkhead,
		dedupCache:        dedup,
	}, nil
}

func buildStorage(ctx context.Context, cfg *config.Config, logger observability.Logger, metrics observability.MetricsClient) (storage.Repository, *pkgdatabase.Database, error) {
	memory := storage.NewMemoryBackend()
	if cfg.Database.Host == "" {
		return memory, nil, nil
	}

	dbCfg := *pkgdatabase.NewConfig()
	dbCfg.Host = cfg.Database.Host
	dbCfg.Port = cfg.Database.Port
	dbCfg.Database = cfg.Database.Database
	dbCfg.Username = cfg.Database.Username
	dbCfg.Password = cfg.Database.Password
	dbCfg.SSLMode = cfg.Database.SSLMode

	db, err := pkgdatabase.NewDatabase(ctx, dbCfg)
	if err != nil {
		logger.Warn("engine: postgres unavailable, falling back to memory-only storage", map[string]interface{}{"error": err.Error()})
		return memory, nil, nil
	}

	cb := resilience.NewCircuitBreaker("postgres-base", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		ResetTimeout:     cfg.CircuitBreakerResetTimeout,
	}, logger, metrics)

	base := postgres.NewBaseRepository(db.DB(), db.DB(), cache.NewNoOpCache(), logger, nil, metrics, postgres.BaseRepositoryConfig{
		CircuitBreaker: cb,
	})
	analysisRepo := postgres.NewAnalysisRepository(base)
	backend := storage.NewPostgresBackend(analysisRepo)

	failover := storage.NewFailover(backend, memory, logger)
	go failover.StartEvictionLoop(ctx, time.Hour)
	return failover, db, nil
}

func buildCascade(cfg *config.Config, core *httpcore.Client, logger observability.Logger) *llm.Cascade {
	return llm.New([]llm.Provider{
		llm.NewOpenRouter(cfg.OpenRouter.BaseURL, cfg.OpenRouter.APIKey, cfg.OpenRouter.Model, core),
		llm.NewHuggingFace(cfg.HuggingFace.BaseURL, cfg.HuggingFace.APIKey, core),
		llm.NewGigaChat(cfg.GigaChat.BaseURL, cfg.GigaChat.APIKey, core),
		llm.NewYandexGPT(cfg.YandexGPT.BaseURL, cfg.YandexGPT.APIKey, cfg.YandexGPT.FolderID, core),
	}, logger)
}

func buildQueues(ctx context.Context, cfg *config.Config) (inbox, results, dlq pkgqueue.SQSAdapter, err error) {
	base := &pkgqueue.SQSAdapterConfig{
		MockMode:      cfg.Queue.MockMode,
		UseLocalStack: cfg.Queue.UseLocalStack,
		Region:        cfg.Queue.Region,
		Endpoint:      cfg.Queue.Endpoint,
	}

	mk := func(queueURL, queueName string) (pkgqueue.SQSAdapter, error) {
		c := *base
		c.QueueURL = queueURL
		c.QueueName = queueName
		return pkgqueue.NewSQSClientAdapter(ctx, &c)
	}

	inbox, err = mk(cfg.Queue.AnalysisQueue, "analysis_queue")
	if err != nil {
		return nil, nil, nil, err
	}
	results, err = mk(cfg.Queue.ResultsQueue, "analysis_results")
	if err != nil {
		return nil, nil, nil, err
	}
	dlq, err = mk(cfg.Queue.DeadLetterQueue, "dlq.analysis")
	if err != nil {
		return nil, nil, nil, err
	}
	return inbox, results, dlq, nil
}

// buildDedupCache builds the Redis-backed dedup cache the consumer uses to
// satisfy §5 edge case 5 (duplicate task_id delivery within 60 seconds
// produces at most one StoredReport). Falls back to a no-op cache when
// Redis isn't configured; there is then no dedup: a duplicate delivery
// reruns the workflow, which overwrites the same thread record but writes
// a second StoredReport.
func buildDedupCache(cfg *config.Config, logger observability.Logger) cache.Cache {
	if cfg.Redis.Address == "" {
		return cache.NewNoOpCache()
	}
	redisCache, err := cache.NewRedisCache(cache.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		Database: cfg.Redis.Database,
	})
	if err != nil {
		logger.Warn("engine: redis dedup cache unavailable, falling back to no-op", map[string]interface{}{"error": err.Error()})
		return cache.NewNoOpCache()
	}
	return redisCache
}

// Close releases the database connection, if one was opened.
func (e *Engine) Close() error {
	if e.collectorBulkhead != nil {
		e.collectorBulkhead.Close()
	}
	if e.dedupCache != nil {
		e.dedupCache.Close()
	}
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

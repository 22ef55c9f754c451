// Package config loads the analysis engine's runtime configuration on top
// of pkg/config's viper-backed loader, applying the defaults named in
// spec §6.6 and translating them into typed values every other package
// consumes directly (durations, thresholds, credentials).
package config

import (
	"fmt"
	"time"

	"github.com/riskguard/analyzer/pkg/config"
)

// ProviderConfig is the (base URL, timeout, cache TTL) triple every
// external provider client needs (spec §6.6 "per-service timeouts" /
// "per-service cache TTLs").
type ProviderConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	TTL     time.Duration
}

// LLMProviderConfig configures one cascade stage (spec §4.4).
type LLMProviderConfig struct {
	BaseURL  string
	APIKey   string
	Model    string
	FolderID string // YandexGPT only
}

// Config is the fully resolved configuration for cmd/server and cmd/worker.
type Config struct {
	Environment string
	HTTPAddr    string
	AdminToken  string

	Database DatabaseConfig
	Queue    QueueConfig

	MaxConcurrentSearches int
	GlobalConcurrencyCap  int
	MaxFeedbackRetries    int
	WorkflowTimeout       time.Duration

	CircuitBreakerFailureThreshold int
	CircuitBreakerResetTimeout     time.Duration

	Registry     ProviderConfig
	Court        ProviderConfig
	Analytics    ProviderConfig
	SearchBasic  ProviderConfig
	SearchDeep   ProviderConfig
	ReportTTL    time.Duration
	GenericCacheTTL time.Duration

	OpenRouter  LLMProviderConfig
	HuggingFace LLMProviderConfig
	GigaChat    LLMProviderConfig
	YandexGPT   LLMProviderConfig

	MaxConsumers    int
	GracefulTimeout time.Duration

	Redis RedisConfig
}

// RedisConfig configures the dedup/idempotency cache the queue consumer
// uses to satisfy the "duplicate delivery within 60 seconds produces at
// most one StoredReport" invariant (spec §4.8, §5 edge case 5). Address
// empty disables Redis; the consumer then runs without a dedup guarantee.
type RedisConfig struct {
	Address    string
	Password   string
	Database   int
	DedupTTL   time.Duration
}

// DatabaseConfig mirrors the subset of pkg/database.Config sourced from
// the environment.
type DatabaseConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

// QueueConfig names the three queue URLs this system uses (spec §4.8:
// analysis_queue, analysis_results, dlq.analysis; cache_queue/dlq.cache
// share the same transport but are addressed by name at the call site).
type QueueConfig struct {
	Region          string
	AnalysisQueue   string
	ResultsQueue    string
	DeadLetterQueue string
	MockMode        bool
	UseLocalStack   bool
	Endpoint        string
}

// Load reads config.base.yaml / config.<env>.yaml from configPath,
// overlays environment variables, and resolves every spec §6.6 default.
func Load(configPath, environment string) (*Config, error) {
	loader := config.NewConfigLoader(configPath)
	setDefaults(loader)
	if err := loader.LoadEnvironment(environment); err != nil {
		return nil, fmt.Errorf("config: load environment %q: %w", environment, err)
	}

	c := &Config{
		Environment: environment,
		HTTPAddr:    loader.GetString("http.addr"),
		AdminToken:  loader.GetString("admin.token"),

		Database: DatabaseConfig{
			Host:     loader.GetString("database.host"),
			Port:     loader.GetInt("database.port"),
			Database: loader.GetString("database.name"),
			Username: loader.GetString("database.username"),
			Password: loader.GetString("database.password"),
			SSLMode:  loader.GetString("database.ssl_mode"),
		},
		Queue: QueueConfig{
			Region:          loader.GetString("queue.region"),
			AnalysisQueue:   loader.GetString("queue.analysis_queue_url"),
			ResultsQueue:    loader.GetString("queue.results_queue_url"),
			DeadLetterQueue: loader.GetString("queue.dlq_analysis_url"),
			MockMode:        loader.GetBool("queue.mock_mode"),
			UseLocalStack:   loader.GetBool("queue.use_localstack"),
			Endpoint:        loader.GetString("queue.endpoint"),
		},

		MaxConcurrentSearches: loader.GetInt("MAX_CONCURRENT_SEARCHES"),
		GlobalConcurrencyCap:  loader.GetInt("GLOBAL_CONCURRENCY_CAP"),
		MaxFeedbackRetries:    loader.GetInt("MAX_FEEDBACK_RETRIES"),
		WorkflowTimeout:       time.Duration(loader.GetInt("WORKFLOW_TIMEOUT_SECONDS")) * time.Second,

		CircuitBreakerFailureThreshold: loader.GetInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD"),
		CircuitBreakerResetTimeout:     time.Duration(loader.GetInt("CIRCUIT_BREAKER_TIMEOUT_SECONDS")) * time.Second,

		Registry:    providerConfig(loader, "registry"),
		Court:       providerConfig(loader, "court"),
		Analytics:   providerConfig(loader, "analytics"),
		SearchBasic: providerConfig(loader, "search_basic"),
		SearchDeep:  providerConfig(loader, "search_deep"),

		ReportTTL:       time.Duration(loader.GetInt("cache.reports_ttl_seconds")) * time.Second,
		GenericCacheTTL: time.Duration(loader.GetInt("cache.generic_ttl_seconds")) * time.Second,

		OpenRouter:  llmConfig(loader, "openrouter"),
		HuggingFace: llmConfig(loader, "huggingface"),
		GigaChat:    llmConfig(loader, "gigachat"),
		YandexGPT:   llmConfig(loader, "yandexgpt"),

		MaxConsumers:    loader.GetInt("queue.max_consumers"),
		GracefulTimeout: time.Duration(loader.GetInt("queue.graceful_timeout_seconds")) * time.Second,

		Redis: RedisConfig{
			Address:  loader.GetString("redis.address"),
			Password: loader.GetString("redis.password"),
			Database: loader.GetInt("redis.database"),
			DedupTTL: time.Duration(loader.GetInt("redis.dedup_ttl_seconds")) * time.Second,
		},
	}
	return c, nil
}

func providerConfig(loader *config.ConfigLoader, name string) ProviderConfig {
	return ProviderConfig{
		BaseURL: loader.GetString("providers." + name + ".base_url"),
		APIKey:  loader.GetString("providers." + name + ".api_key"),
		Timeout: time.Duration(loader.GetInt("providers."+name+".timeout_seconds")) * time.Second,
		TTL:     time.Duration(loader.GetInt("providers."+name+".ttl_seconds")) * time.Second,
	}
}

func llmConfig(loader *config.ConfigLoader, name string) LLMProviderConfig {
	return LLMProviderConfig{
		BaseURL:  loader.GetString("llm." + name + ".base_url"),
		APIKey:   loader.GetString("llm." + name + ".api_key"),
		Model:    loader.GetString("llm." + name + ".model"),
		FolderID: loader.GetString("llm." + name + ".folder_id"),
	}
}

// setDefaults seeds every spec §6.6 default onto the loader so Load
// returns a usable Config even with an empty config.base.yaml.
func setDefaults(loader *config.ConfigLoader) {
	loader.SetDefault("http.addr", ":8080")
	loader.SetDefault("admin.token", "")

	loader.SetDefault("database.port", 5432)
	loader.SetDefault("database.ssl_mode", "disable")

	loader.SetDefault("queue.region", "us-east-1")
	loader.SetDefault("queue.max_consumers", 10)
	loader.SetDefault("queue.graceful_timeout_seconds", 30)

	loader.SetDefault("MAX_CONCURRENT_SEARCHES", 5)
	loader.SetDefault("GLOBAL_CONCURRENCY_CAP", 64)
	loader.SetDefault("MAX_FEEDBACK_RETRIES", 3)
	loader.SetDefault("WORKFLOW_TIMEOUT_SECONDS", 300)

	loader.SetDefault("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5)
	loader.SetDefault("CIRCUIT_BREAKER_TIMEOUT_SECONDS", 60)

	loader.SetDefault("providers.registry.timeout_seconds", 15)
	loader.SetDefault("providers.registry.ttl_seconds", 7200)
	loader.SetDefault("providers.court.timeout_seconds", 20)
	loader.SetDefault("providers.court.ttl_seconds", 9600)
	loader.SetDefault("providers.analytics.timeout_seconds", 30)
	loader.SetDefault("providers.analytics.ttl_seconds", 3600)
	loader.SetDefault("providers.search_basic.timeout_seconds", 45)
	loader.SetDefault("providers.search_basic.ttl_seconds", 300)
	loader.SetDefault("providers.search_deep.timeout_seconds", 60)
	loader.SetDefault("providers.search_deep.ttl_seconds", 300)

	loader.SetDefault("cache.reports_ttl_seconds", 30*24*3600)
	loader.SetDefault("cache.generic_ttl_seconds", 3600)

	loader.SetDefault("llm.openrouter.model", "openai/gpt-4o-mini")
	loader.SetDefault("llm.yandexgpt.model", "yandexgpt-lite")

	loader.SetDefault("redis.database", 0)
	loader.SetDefault("redis.dedup_ttl_seconds", 60)
}

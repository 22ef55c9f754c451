// Package httpcore is the resilient HTTP core from spec §4.1: request
// execution with a per-host circuit breaker, retry with exponential
// backoff, timeouts, and metrics. Provider clients (internal/providers) and
// the LLM cascade (internal/llm) are both built on top of it.
package httpcore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/riskguard/analyzer/internal/apperr"
	"github.com/riskguard/analyzer/pkg/observability"
	"github.com/riskguard/analyzer/pkg/resilience"
)

// MaxPages bounds fetch_all_pages regardless of configuration (spec §4.1).
const MaxPages = 100

// RequestOptions configures one Request call.
type RequestOptions struct {
	Method  string
	Headers map[string]string
	Body    io.Reader
	Timeout time.Duration

	// ServiceLabel groups this call under a logical circuit breaker/metrics
	// key distinct from the raw host (spec §4.1 "host key derived from URL
	// authority + logical service label").
	ServiceLabel string
}

// Response is the core's normalized response shape.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Client is one resilient HTTP core instance, shared across every provider
// client. Circuit breaker and metrics state is keyed per host (spec §3
// ownership: "the HTTP core owns circuit-breaker and metrics state per host
// key").
type Client struct {
	httpClient *http.Client
	breakers   *resilience.CircuitBreakerManager
	logger     observability.Logger
	metrics    observability.MetricsClient
	maxRetries int
}

// Config configures a Client instance.
type Config struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	MaxRetries       int
}

// DefaultConfig mirrors spec §6.6's circuit breaker tuning defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
		MaxRetries:       3,
	}
}

// New builds a Client. logger/metrics may be nil (no-op implementations are
// substituted).
func New(cfg Config, logger observability.Logger, metrics observability.MetricsClient) *Client {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	defaultCB := resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout,
	}
	return &Client{
		httpClient: &http.Client{},
		breakers: resilience.NewCircuitBreakerManager(logger, metrics, map[string]resilience.CircuitBreakerConfig{
			"default": defaultCB,
		}),
		logger:     logger,
		metrics:    metrics,
		maxRetries: cfg.MaxRetries,
	}
}

func hostKey(rawURL, serviceLabel string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return serviceLabel
	}
	if serviceLabel == "" {
		return u.Host
	}
	return serviceLabel + "@" + u.Host
}

// Request executes one HTTP call behind the per-host circuit breaker and
// retry policy. 4xx (except 429) is terminal; transport errors and 5xx/429
// are retried up to opts timeout/retry budget with exponential backoff and
// jitter (spec §4.1).
func (c *Client) Request(ctx context.Context, method, rawURL string, opts RequestOptions) (*Response, error) {
	key := hostKey(rawURL, opts.ServiceLabel)
	breaker := c.breakers.GetCircuitBreaker(key)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retryCfg := resilience.RetryConfig{
		MaxRetries:      c.maxRetries,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  timeout,
		RetryIfFn: func(err error) bool {
			return apperr.Retryable(apperr.KindOf(err))
		},
	}

	result, err := breaker.Execute(ctx, func() (interface{}, error) {
		return resilience.RetryWithResult(ctx, retryCfg, func() (*Response, error) {
			return c.doOnce(ctx, method, rawURL, opts, timeout)
		})
	})

	if err != nil {
		if errors.Is(err, resilience.ErrCircuitBreakerOpen) {
			return nil, apperr.New(apperr.CircuitOpen, fmt.Sprintf("circuit open for %s", key)).WithOperation("httpcore", key)
		}
		return nil, err
	}
	resp, _ := result.(*Response)
	return resp, nil
}

func (c *Client) doOnce(ctx context.Context, method, rawURL string, opts RequestOptions, timeout time.Duration) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, rawURL, opts.Body)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InvalidInput, "building request").WithOperation("httpcore", rawURL)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if callCtx.Err() != nil {
			return nil, apperr.Wrap(err, apperr.Timeout, "request timed out").WithOperation("httpcore", rawURL)
		}
		return nil, apperr.Wrap(err, apperr.Transport, "transport error").WithOperation("httpcore", rawURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Transport, "reading response body").WithOperation("httpcore", rawURL)
	}

	c.metrics.RecordHistogram("httpcore_request_duration_seconds", duration.Seconds(), map[string]string{
		"host":   hostKey(rawURL, opts.ServiceLabel),
		"status": fmt.Sprintf("%d", resp.StatusCode),
	})

	if resp.StatusCode >= 400 {
		kind := apperr.ClassifyHTTPStatus(resp.StatusCode)
		return nil, apperr.New(kind, fmt.Sprintf("upstream returned %d", resp.StatusCode)).WithOperation("httpcore", rawURL)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body, Headers: resp.Header}, nil
}

// CircuitBreakerStatus reports the state of every host key the core has
// seen, for GET /utility/circuit-breakers (spec §6.1).
func (c *Client) CircuitBreakerStatus() map[string]map[string]interface{} {
	return c.breakers.GetAllMetrics()
}

// ResetCircuitBreaker force-resets one host key, for the admin
// POST /utility/circuit-breakers/{service}/reset route (spec §6.1).
func (c *Client) ResetCircuitBreaker(key string) {
	c.breakers.GetCircuitBreaker(key).Reset()
}

// Package providers implements the external provider clients of spec §4.3:
// one singleton per provider (registry, court, analytics, two web-search
// engines), each built on internal/httpcore with a caching layer in front.
package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/riskguard/analyzer/internal/apperr"
	"github.com/riskguard/analyzer/internal/httpcore"
	"github.com/riskguard/analyzer/internal/model"
	"github.com/riskguard/analyzer/internal/storage"
	"github.com/riskguard/analyzer/internal/validation"
)

// base is the shared machinery every provider client embeds: cache-through
// request execution against the HTTP core with a deterministic cache key
// (spec §4.3: `f"{source}:{canonicalized_args}"`).
type base struct {
	source  string
	baseURL string
	timeout time.Duration
	ttl     time.Duration
	http    *httpcore.Client
	cache   storage.Repository
}

func newBase(source, baseURL string, timeout, ttl time.Duration, http *httpcore.Client, cache storage.Repository) base {
	return base{source: source, baseURL: baseURL, timeout: timeout, ttl: ttl, http: http, cache: cache}
}

func cacheKey(source string, args map[string]string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	// sort for determinism
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(args[k]))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s:%s", source, hex.EncodeToString(h.Sum(nil)))
}

// fetch runs fn (a provider-specific HTTP call + decode) behind the cache.
// A cache hit short-circuits fn entirely; a cache miss stores fn's decoded
// payload with b.ttl on success (spec §4.3: "writes back on success with
// the TTL shown in §6").
func (b base) fetch(ctx context.Context, args map[string]string, fn func(ctx context.Context) (interface{}, error)) model.SourceResultEnvelope {
	start := time.Now()
	key := cacheKey(b.source, args)

	if entry, err := b.cache.GetCache(ctx, key); err == nil {
		var payload interface{}
		if jsonErr := json.Unmarshal(entry.Value, &payload); jsonErr == nil {
			return model.SourceResultEnvelope{
				Source:     b.source,
				Status:     model.EnvelopeSuccess,
				Payload:    payload,
				DurationMS: time.Since(start).Milliseconds(),
			}
		}
	}

	payload, err := fn(ctx)
	if err != nil {
		return envelopeFromError(b.source, err, start)
	}

	if raw, marshalErr := json.Marshal(payload); marshalErr == nil {
		_ = b.cache.SetCache(ctx, model.CacheEntry{
			Key:       key,
			Value:     raw,
			TTLEpoch:  time.Now().Add(b.ttl).Unix(),
			CreatedAt: time.Now(),
			Source:    b.source,
		})
	}

	return model.SourceResultEnvelope{
		Source:     b.source,
		Status:     model.EnvelopeSuccess,
		Payload:    payload,
		DurationMS: time.Since(start).Milliseconds(),
	}
}

func envelopeFromError(source string, err error, start time.Time) model.SourceResultEnvelope {
	return model.SourceResultEnvelope{
		Source:     source,
		Status:     model.EnvelopeFailed,
		Error:      err.Error(),
		DurationMS: time.Since(start).Milliseconds(),
	}
}

// Healthcheck issues a minimal real GET against the provider's base URL
// (spec §4.3: "a healthcheck(timeout) that issues a minimal real request").
func (b base) Healthcheck(ctx context.Context, timeout time.Duration) error {
	_, err := b.http.Request(ctx, "GET", b.baseURL+"/health", httpcore.RequestOptions{
		ServiceLabel: b.source,
		Timeout:      timeout,
	})
	return err
}

func requireValidINN(inn string) error {
	if inn == "" {
		return nil
	}
	if !validation.ValidINN(inn) {
		return apperr.New(apperr.InvalidInput, fmt.Sprintf("invalid INN %q", inn))
	}
	return nil
}

func query(params map[string]string) string {
	v := url.Values{}
	for k, val := range params {
		v.Set(k, val)
	}
	return v.Encode()
}

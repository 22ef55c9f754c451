// Package llm implements the LLM provider cascade of spec §4.4: a fixed
// failover order (OpenRouter -> HuggingFace -> GigaChat -> YandexGPT),
// unconfigured providers skipped, one repair attempt per provider in JSON
// mode, cascade exhaustion yielding apperr.LLMUnavailable.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/riskguard/analyzer/internal/apperr"
	"github.com/riskguard/analyzer/internal/httpcore"
	"github.com/riskguard/analyzer/pkg/observability"
)

// Provider is one LLM backend in the cascade.
type Provider interface {
	Name() string
	// Configured reports whether the provider has the credentials/endpoint
	// it needs to be attempted at all.
	Configured() bool
	// Complete issues one completion call and returns raw text.
	Complete(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

// CallResult carries the structured telemetry spec §4.4 requires: "Per-call
// latency, provider used, and fallback depth are emitted as a structured
// event."
type CallResult struct {
	Text         string
	ProviderUsed string
	FallbackDepth int
	LatencyMS    int64
}

// Cascade tries Providers in the order given until one succeeds.
type Cascade struct {
	providers []Provider
	timeout   time.Duration
	logger    observability.Logger
}

// New builds a Cascade. Per-call timeout defaults to spec §6.6's llm:60s.
func New(providers []Provider, logger observability.Logger) *Cascade {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Cascade{providers: providers, timeout: 60 * time.Second, logger: logger}
}

// GenerateText tries each configured provider in order, returning the
// first successful completion (spec §4.4 generate_text).
func (c *Cascade) GenerateText(ctx context.Context, prompt string) (CallResult, error) {
	start := time.Now()
	depth := 0
	for _, p := range c.providers {
		if !p.Configured() {
			continue
		}
		text, err := p.Complete(ctx, prompt, c.timeout)
		if err == nil && text != "" {
			c.logger.Info("llm cascade call succeeded", map[string]interface{}{
				"provider":       p.Name(),
				"fallback_depth": depth,
				"latency_ms":     time.Since(start).Milliseconds(),
			})
			return CallResult{Text: text, ProviderUsed: p.Name(), FallbackDepth: depth, LatencyMS: time.Since(start).Milliseconds()}, nil
		}
		c.logger.Warn("llm provider attempt failed", map[string]interface{}{"provider": p.Name(), "error": errString(err)})
		depth++
	}
	return CallResult{}, apperr.New(apperr.LLMUnavailable, "all LLM providers exhausted")
}

// GenerateJSON is generate_text plus schema validation with a single
// strict re-prompt repair attempt per provider (spec §4.4). dest receives
// the validated, unmarshaled JSON.
func (c *Cascade) GenerateJSON(ctx context.Context, prompt string, schema string, dest interface{}) (CallResult, error) {
	start := time.Now()
	depth := 0
	schemaLoader := gojsonschema.NewStringLoader(schema)
	responded := false

	for _, p := range c.providers {
		if !p.Configured() {
			continue
		}
		text, err := p.Complete(ctx, prompt, c.timeout)
		if err == nil {
			responded = true
			if ok := validateAndDecode(schemaLoader, text, dest); ok {
				return c.success(p, depth, start), nil
			}
			// single repair attempt: strict re-prompt
			repairPrompt := fmt.Sprintf("%s\n\nYour previous response did not match the required schema. Return only valid JSON matching this schema, with no surrounding text:\n%s", prompt, schema)
			text, err = p.Complete(ctx, repairPrompt, c.timeout)
			if err == nil && validateAndDecode(schemaLoader, text, dest) {
				return c.success(p, depth, start), nil
			}
		}
		c.logger.Warn("llm provider attempt failed", map[string]interface{}{"provider": p.Name(), "error": errString(err)})
		depth++
	}
	if !responded {
		return CallResult{}, apperr.New(apperr.LLMUnavailable, "all LLM providers exhausted")
	}
	return CallResult{}, apperr.New(apperr.SchemaMismatch, "no LLM provider returned schema-valid JSON")
}

func (c *Cascade) success(p Provider, depth int, start time.Time) CallResult {
	latency := time.Since(start).Milliseconds()
	c.logger.Info("llm cascade call succeeded", map[string]interface{}{
		"provider":       p.Name(),
		"fallback_depth": depth,
		"latency_ms":     latency,
	})
	return CallResult{ProviderUsed: p.Name(), FallbackDepth: depth, LatencyMS: latency}
}

func validateAndDecode(schemaLoader gojsonschema.JSONLoader, text string, dest interface{}) bool {
	text = bytes.TrimSpace([]byte(text))
	docLoader := gojsonschema.NewBytesLoader(text)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil || !result.Valid() {
		return false
	}
	return json.Unmarshal(text, dest) == nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// httpProvider implements Provider against a JSON completion endpoint
// common to the four concrete providers below.
type httpProvider struct {
	name         string
	baseURL      string
	apiKey       string
	http         *httpcore.Client
	extractText  func(body []byte) (string, error)
	buildRequest func(prompt string) ([]byte, error)
}

func (p *httpProvider) Name() string        { return p.name }
func (p *httpProvider) Configured() bool    { return p.apiKey != "" && p.baseURL != "" }

func (p *httpProvider) Complete(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	body, err := p.buildRequest(prompt)
	if err != nil {
		return "", err
	}
	resp, err := p.http.Request(ctx, "POST", p.baseURL, httpcore.RequestOptions{
		Headers: map[string]string{
			"Authorization": "Bearer " + p.apiKey,
			"Content-Type":  "application/json",
		},
		Body:         bytes.NewReader(body),
		Timeout:      timeout,
		ServiceLabel: "llm-" + p.name,
	})
	if err != nil {
		return "", err
	}
	return p.extractText(resp.Body)
}

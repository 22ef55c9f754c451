package providers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/riskguard/analyzer/internal/apperr"
	"github.com/riskguard/analyzer/internal/httpcore"
	"github.com/riskguard/analyzer/internal/model"
	"github.com/riskguard/analyzer/internal/storage"
)

// RegistryClient is the company-registry provider client: status
// (active/liquidated/bankrupt) plus sanctions/tax-debt flags that feed the
// financial and regulatory risk categories (spec §4.5). Registry is a
// critical source (spec §4.7).
type RegistryClient struct {
	base
}

// NewRegistryClient builds the registry provider client. Default timeout
// and TTL come from spec §6.6 (registry:15s timeout, 7200s TTL).
func NewRegistryClient(baseURL string, http *httpcore.Client, cache storage.Repository) *RegistryClient {
	return &RegistryClient{base: newBase("registry", baseURL, 15*time.Second, 7200*time.Second, http, cache)}
}

// Lookup fetches registry data for a company by INN. INN is validated at
// the client boundary (spec §4.3).
func (c *RegistryClient) Lookup(ctx context.Context, clientName, inn string) model.SourceResultEnvelope {
	if err := requireValidINN(inn); err != nil {
		return envelopeFromError(c.source, err, time.Now())
	}
	args := map[string]string{"client_name": clientName, "inn": inn}
	return c.fetch(ctx, args, func(ctx context.Context) (interface{}, error) {
		resp, err := c.http.Request(ctx, "GET", c.baseURL+"/v1/registry/lookup?"+query(args), httpcore.RequestOptions{
			ServiceLabel: c.source,
			Timeout:      c.timeout,
		})
		if err != nil {
			return nil, err
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, apperr.Wrap(err, apperr.ProviderError, "decoding registry response").WithOperation("providers", "registry")
		}
		return payload, nil
	})
}

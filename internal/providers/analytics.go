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

// AnalyticsClient is the financial-analytics provider client: distress
// flags feeding the financial risk category (spec §4.5). Analytics is a
// critical source (spec §4.7).
type AnalyticsClient struct {
	base
}

// NewAnalyticsClient builds the analytics provider client (spec §6.6:
// analytics:30s timeout, 3600s TTL).
func NewAnalyticsClient(baseURL string, http *httpcore.Client, cache storage.Repository) *AnalyticsClient {
	return &AnalyticsClient{base: newBase("analytics", baseURL, 30*time.Second, 3600*time.Second, http, cache)}
}

// Lookup fetches financial analytics for a company by INN.
func (c *AnalyticsClient) Lookup(ctx context.Context, clientName, inn string) model.SourceResultEnvelope {
	if err := requireValidINN(inn); err != nil {
		return envelopeFromError(c.source, err, time.Now())
	}
	args := map[string]string{"client_name": clientName, "inn": inn}
	return c.fetch(ctx, args, func(ctx context.Context) (interface{}, error) {
		resp, err := c.http.Request(ctx, "GET", c.baseURL+"/v1/analytics/report?"+query(args), httpcore.RequestOptions{
			ServiceLabel: c.source,
			Timeout:      c.timeout,
		})
		if err != nil {
			return nil, err
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, apperr.Wrap(err, apperr.ProviderError, "decoding analytics response").WithOperation("providers", "analytics")
		}
		return payload, nil
	})
}

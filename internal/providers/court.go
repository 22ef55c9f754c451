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

// CourtClient is the court-cases provider client: case counts and their
// recency, feeding the legal risk category (spec §4.5).
type CourtClient struct {
	base
}

// NewCourtClient builds the court provider client (spec §6.6: court:20s
// timeout, 9600s TTL).
func NewCourtClient(baseURL string, http *httpcore.Client, cache storage.Repository) *CourtClient {
	return &CourtClient{base: newBase("court", baseURL, 20*time.Second, 9600*time.Second, http, cache)}
}

// Lookup fetches court-case history for a company by INN or name.
func (c *CourtClient) Lookup(ctx context.Context, clientName, inn string) model.SourceResultEnvelope {
	if err := requireValidINN(inn); err != nil {
		return envelopeFromError(c.source, err, time.Now())
	}
	args := map[string]string{"client_name": clientName, "inn": inn}
	return c.fetch(ctx, args, func(ctx context.Context) (interface{}, error) {
		resp, err := c.http.Request(ctx, "GET", c.baseURL+"/v1/cases/search?"+query(args), httpcore.RequestOptions{
			ServiceLabel: c.source,
			Timeout:      c.timeout,
		})
		if err != nil {
			return nil, err
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return nil, apperr.Wrap(err, apperr.ProviderError, "decoding court response").WithOperation("providers", "court")
		}
		return payload, nil
	})
}

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

// SearchClient is a web-search provider client (search-basic or
// search-deep). It returns raw snippets; sentiment annotation happens in
// the collector via a deterministic lexicon rule, not here (spec §4.7).
type SearchClient struct {
	base
}

// NewSearchBasicClient builds the search-basic provider client (spec §6.6:
// search-basic:45s timeout, search:300s TTL).
func NewSearchBasicClient(baseURL string, http *httpcore.Client, cache storage.Repository) *SearchClient {
	return &SearchClient{base: newBase("search-basic", baseURL, 45*time.Second, 300*time.Second, http, cache)}
}

// NewSearchDeepClient builds the search-deep provider client (spec §6.6:
// search-deep:60s timeout, search:300s TTL).
func NewSearchDeepClient(baseURL string, http *httpcore.Client, cache storage.Repository) *SearchClient {
	return &SearchClient{base: newBase("search-deep", baseURL, 60*time.Second, 300*time.Second, http, cache)}
}

type rawSnippet struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// Search runs a query for the given category and returns raw snippets in
// the envelope's Payload as a []interface{} of map[string]interface{}
// values with "title", "text" and "url" keys (JSON-decoded, not yet
// sentiment annotated).
func (c *SearchClient) Search(ctx context.Context, category model.SearchIntentCategory, q string) model.SourceResultEnvelope {
	args := map[string]string{"category": string(category), "q": q}
	return c.fetch(ctx, args, func(ctx context.Context) (interface{}, error) {
		resp, err := c.http.Request(ctx, "GET", c.baseURL+"/v1/search?"+query(args), httpcore.RequestOptions{
			ServiceLabel: c.source,
			Timeout:      c.timeout,
		})
		if err != nil {
			return nil, err
		}
		var results []rawSnippet
		if err := json.Unmarshal(resp.Body, &results); err != nil {
			return nil, apperr.Wrap(err, apperr.ProviderError, "decoding search response").WithOperation("providers", c.source)
		}
		out := make([]interface{}, len(results))
		for i, r := range results {
			out[i] = map[string]interface{}{"title": r.Title, "text": r.Text, "url": r.URL}
		}
		return out, nil
	})
}

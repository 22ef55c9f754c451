package httpcore

import (
	"context"
	"fmt"
	"net/url"

	"github.com/riskguard/analyzer/internal/apperr"
)

// Page is one page of results from a paginated provider endpoint.
type Page struct {
	Items      []interface{}
	NextCursor string
}

// PageFetcher fetches one page given a cursor (empty string means first
// page) and decodes it into a Page.
type PageFetcher func(ctx context.Context, cursor string) (Page, error)

// FetchAllPages drives a cursor-based pagination loop, stopping on an empty
// page, on cursor-cycle detection, or at MaxPages, whichever comes first
// (spec §4.1, testable property 9 of spec §8).
func (c *Client) FetchAllPages(ctx context.Context, rawURL string, params url.Values, fetch PageFetcher) ([]interface{}, error) {
	var all []interface{}
	seen := make(map[string]bool)
	cursor := ""

	for i := 0; i < MaxPages; i++ {
		page, err := fetch(ctx, cursor)
		if err != nil {
			return all, err
		}
		if len(page.Items) == 0 {
			return all, nil
		}
		all = append(all, page.Items...)

		if page.NextCursor == "" {
			return all, nil
		}
		if seen[page.NextCursor] {
			return all, apperr.New(apperr.InternalError, fmt.Sprintf("pagination cycle detected at cursor %q for %s", page.NextCursor, rawURL)).WithOperation("httpcore", "fetch_all_pages")
		}
		seen[page.NextCursor] = true
		cursor = page.NextCursor
	}

	return all, apperr.New(apperr.InternalError, fmt.Sprintf("reached MAX_PAGES=%d for %s", MaxPages, rawURL)).WithOperation("httpcore", "fetch_all_pages")
}

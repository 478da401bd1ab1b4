// Package search provides the market-research backend used by the
// financial_research tool: an HTTP provider for a Firecrawl-compatible search
// API plus caching and rate-limiting decorators.
package search

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("search query is empty")

// Query describes a single search request.
type Query struct {
	Text    string
	Limit   int
	Lang    string
	Timeout time.Duration
}

// Result is one search hit. Content holds the extracted page text or, when
// unavailable, the result snippet.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// Provider executes search queries.
type Provider interface {
	Search(ctx context.Context, q Query) ([]Result, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, q Query) ([]Result, error)

// Search implements Provider.
func (f ProviderFunc) Search(ctx context.Context, q Query) ([]Result, error) { return f(ctx, q) }

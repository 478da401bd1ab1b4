package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the hosted Firecrawl API.
const DefaultBaseURL = "https://api.firecrawl.dev"

// HTTPOptions configures an HTTPProvider.
type HTTPOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	// ScrapeMarkdown asks the backend to return page markdown for each hit.
	ScrapeMarkdown bool
}

// HTTPProvider queries a Firecrawl-compatible /v1/search endpoint.
type HTTPProvider struct {
	opts HTTPOptions
}

type searchRequest struct {
	Query         string         `json:"query"`
	Limit         int            `json:"limit,omitempty"`
	Lang          string         `json:"lang,omitempty"`
	Timeout       int64          `json:"timeout,omitempty"` // milliseconds
	ScrapeOptions *scrapeOptions `json:"scrapeOptions,omitempty"`
}

type scrapeOptions struct {
	Formats []string `json:"formats"`
}

type searchResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Markdown    string `json:"markdown"`
	} `json:"data"`
}

// NewHTTPProvider creates an HTTPProvider.
func NewHTTPProvider(optFns ...func(o *HTTPOptions)) *HTTPProvider {
	opts := HTTPOptions{
		BaseURL:        DefaultBaseURL,
		HTTPClient:     &http.Client{},
		ScrapeMarkdown: true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &HTTPProvider{opts: opts}
}

// Search implements Provider. The query timeout bounds the whole HTTP
// exchange and is forwarded to the backend.
func (p *HTTPProvider) Search(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}

	if q.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.Timeout)
		defer cancel()
	}

	body := searchRequest{
		Query:   q.Text,
		Limit:   q.Limit,
		Lang:    q.Lang,
		Timeout: q.Timeout.Milliseconds(),
	}
	if p.opts.ScrapeMarkdown {
		body.ScrapeOptions = &scrapeOptions{Formats: []string{"markdown"}}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.BaseURL+"/v1/search", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.opts.APIKey)
	}

	start := time.Now()

	resp, err := p.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("search backend returned %d: %s", resp.StatusCode, truncate(string(payload), 200))
	}

	var decoded searchResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	if !decoded.Success {
		msg := decoded.Error
		if msg == "" {
			msg = "unsuccessful response"
		}
		return nil, fmt.Errorf("search backend error: %s", msg)
	}

	results := make([]Result, 0, len(decoded.Data))
	for _, d := range decoded.Data {
		content := d.Markdown
		if content == "" {
			content = d.Description
		}
		results = append(results, Result{URL: d.URL, Title: d.Title, Content: content})
	}

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}

	return results, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

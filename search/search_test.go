package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProvider_Search(t *testing.T) {
	var got searchRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		assert.Equal(t, "Bearer fc-key", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"data":[
			{"url":"https://a.example","title":"A","description":"snippet a","markdown":"# body a"},
			{"url":"https://b.example","title":"B","description":"snippet b"}
		]}`)
	}))
	defer srv.Close()

	p := NewHTTPProvider(func(o *HTTPOptions) {
		o.BaseURL = srv.URL + "/"
		o.APIKey = "fc-key"
	})

	results, err := p.Search(context.Background(), Query{Text: "SEBI rules for SIP", Limit: 5, Lang: "en", Timeout: 60 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, "SEBI rules for SIP", got.Query)
	assert.Equal(t, 5, got.Limit)
	assert.Equal(t, "en", got.Lang)
	assert.Equal(t, int64(60000), got.Timeout)
	require.NotNil(t, got.ScrapeOptions)

	require.Len(t, results, 2)
	assert.Equal(t, Result{URL: "https://a.example", Title: "A", Content: "# body a"}, results[0])
	assert.Equal(t, "snippet b", results[1].Content)
}

func TestHTTPProvider_Errors(t *testing.T) {
	status := http.StatusInternalServerError
	body := `boom`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	p := NewHTTPProvider(func(o *HTTPOptions) { o.BaseURL = srv.URL })

	_, err := p.Search(context.Background(), Query{Text: "x"})
	assert.ErrorContains(t, err, "500")

	status, body = http.StatusOK, `{"success":false,"error":"quota exceeded"}`
	_, err = p.Search(context.Background(), Query{Text: "x"})
	assert.ErrorContains(t, err, "quota exceeded")

	status, body = http.StatusOK, `not json`
	_, err = p.Search(context.Background(), Query{Text: "x"})
	assert.ErrorContains(t, err, "decode")

	_, err = p.Search(context.Background(), Query{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestHTTPProvider_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	p := NewHTTPProvider(func(o *HTTPOptions) { o.BaseURL = srv.URL })

	_, err := p.Search(context.Background(), Query{Text: "slow", Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCached(t *testing.T) {
	var calls atomic.Int32
	next := ProviderFunc(func(_ context.Context, q Query) ([]Result, error) {
		calls.Add(1)
		return []Result{{URL: "https://x.example", Content: q.Text}}, nil
	})

	cache := NewMemoryCache()
	c := NewCached(next, cache, time.Minute, nil)
	ctx := context.Background()

	r1, err := c.Search(ctx, Query{Text: "Nifty 50 outlook", Limit: 5, Lang: "en"})
	require.NoError(t, err)
	r2, err := c.Search(ctx, Query{Text: "  nifty 50   OUTLOOK ", Limit: 5, Lang: "en"})
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, int32(1), calls.Load())

	_, err = c.Search(ctx, Query{Text: "Nifty 50 outlook", Limit: 3, Lang: "en"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	next := ProviderFunc(func(context.Context, Query) ([]Result, error) {
		calls.Add(1)
		return nil, errors.New("backend down")
	})

	c := NewCached(next, NewMemoryCache(), time.Minute, nil)
	_, err := c.Search(context.Background(), Query{Text: "x"})
	assert.Error(t, err)
	_, err = c.Search(context.Background(), Query{Text: "x"})
	assert.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryCache()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Second))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	now = now.Add(2 * time.Second)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestRateLimited(t *testing.T) {
	next := ProviderFunc(func(context.Context, Query) ([]Result, error) { return []Result{}, nil })
	r := NewRateLimited(next, 1, 1) // one per minute

	_, err := r.Search(context.Background(), Query{Text: "a"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = r.Search(ctx, Query{Text: "b"})
	assert.ErrorContains(t, err, "rate limit")
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, RedisOptions{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

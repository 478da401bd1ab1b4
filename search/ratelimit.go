package search

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to a Provider with a token bucket. Callers
// block until a token is available or ctx is done.
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimited allows perMinute requests per minute with the given burst.
func NewRateLimited(next Provider, perMinute float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perMinute/60.0), burst),
	}
}

// Search implements Provider.
func (r *RateLimited) Search(ctx context.Context, q Query) ([]Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search rate limit: %w", err)
	}
	return r.next.Search(ctx, q)
}

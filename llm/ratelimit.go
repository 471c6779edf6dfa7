package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Provider so that calls wait for a token bucket.
type RateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimited limits inner to rpm requests per minute with the given
// burst. A non-positive rpm returns inner unchanged.
func NewRateLimited(inner Provider, rpm, burst int) Provider {
	if rpm <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
	}
}

// Name returns the wrapped provider name.
func (r *RateLimited) Name() string {
	return r.inner.Name()
}

// Model returns the wrapped provider model.
func (r *RateLimited) Model() string {
	return r.inner.Model()
}

// Invoke waits for a token then delegates.
func (r *RateLimited) Invoke(ctx context.Context, req Request) (Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limiter: %w", err)
	}
	return r.inner.Invoke(ctx, req)
}

var _ Provider = (*RateLimited)(nil)

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces out calls to one external API. It is safe for
// concurrent use; callers sharing a limiter serialize on Wait.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows one request per interval with a burst of one.
// A zero or negative interval disables limiting.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	if interval <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until a request is allowed or the context is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

// Interval returns the configured spacing between requests, or 0 when
// limiting is disabled.
func (r *RateLimiter) Interval() time.Duration {
	if r == nil || r.limiter.Limit() == rate.Inf {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(r.limiter.Limit()))
}

package utils

import (
	"context"

	"golang.org/x/time/rate"
)

// RequestLimiter spaces out upstream requests shared by all in-flight resolutions.
// A nil *RequestLimiter never blocks.
type RequestLimiter struct {
	limiter *rate.Limiter
}

// NewRequestLimiter creates a limiter allowing requestsPerSecond with the given burst.
// It returns nil when requestsPerSecond is not positive.
func NewRequestLimiter(requestsPerSecond float64, burst int) *RequestLimiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RequestLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Wait blocks until a request may be sent or ctx is done
func (l *RequestLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

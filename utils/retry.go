package utils

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/avast/retry-go"

	"teralink/internal"
)

// RetryConfig defines retry behavior configuration
type RetryConfig struct {
	// MaxAttempts counts the first call, so 3 means at most 2 retries
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	// RetryStatusCodes are upstream statuses treated as throttling or temporary unavailability
	RetryStatusCodes []int
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:      3,
		BaseDelay:        2 * time.Second,
		MaxDelay:         30 * time.Second,
		AttemptTimeout:   30 * time.Second,
		RetryStatusCodes: []int{403, 429, 500, 502, 503, 504, 509},
	}
}

// RetryConfigFromConfig builds the executor settings from application configuration
func RetryConfigFromConfig(config *internal.Config) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:      config.MaxRetries,
		BaseDelay:        config.RetryBaseDelay,
		MaxDelay:         config.RetryMaxDelay,
		AttemptTimeout:   config.RequestTimeout,
		RetryStatusCodes: config.RetryStatusCodes,
	}
}

// Executor runs upstream operations with exponential backoff on transient failures.
// The delay after failed attempt n (0-indexed) is BaseDelay * 2^n.
type Executor struct {
	config    *RetryConfig
	limiter   internal.RateLimiter
	retryable map[int]bool
}

// NewExecutor creates an executor; limiter may be nil
func NewExecutor(config *RetryConfig, limiter internal.RateLimiter) *Executor {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	retryable := make(map[int]bool, len(config.RetryStatusCodes))
	for _, code := range config.RetryStatusCodes {
		retryable[code] = true
	}

	return &Executor{
		config:    config,
		limiter:   limiter,
		retryable: retryable,
	}
}

// Do runs fn until it succeeds, fails permanently, or attempts run out.
// Each attempt gets its own AttemptTimeout. Exhaustion yields UpstreamUnavailable
// wrapping the last error; permanent failures are returned as they are.
func (e *Executor) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	attempts := 0

	err := retry.Do(
		func() error {
			attempts++
			if e.limiter != nil {
				if err := e.limiter.Wait(ctx); err != nil {
					return err
				}
			}

			attemptCtx, cancel := context.WithTimeout(ctx, e.config.AttemptTimeout)
			defer cancel()

			err := fn(attemptCtx)
			if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				return internal.NewNetworkTimeoutError(operation).WithCause(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.config.MaxAttempts)),
		retry.Delay(e.config.BaseDelay),
		retry.MaxDelay(e.config.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(e.IsTransient),
		retry.OnRetry(func(n uint, err error) {
			internal.LogWarn("%s attempt %d/%d failed: %v", operation, n+1, e.config.MaxAttempts, err)
		}),
	)
	if err == nil {
		return nil
	}

	if e.IsTransient(err) || ctx.Err() != nil {
		return internal.NewUpstreamUnavailableError(operation, attempts, err)
	}
	return err
}

// CheckStatus turns an upstream status into an error; 2xx and 3xx pass
func (e *Executor) CheckStatus(status int) error {
	if status >= 200 && status < 400 {
		return nil
	}
	return internal.NewStatusError(status, e.retryable[status])
}

// IsTransient reports whether err is worth another attempt
func (e *Executor) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if te, ok := internal.AsTeraboxError(err); ok {
		if te.IsRetryable() {
			return true
		}
		// An UpstreamUnavailable from a nested executor is not retried again
		if te.Type == internal.ErrUpstreamUnavailable {
			return false
		}
		return te.Code >= http.StatusInternalServerError && e.retryable[te.Code]
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

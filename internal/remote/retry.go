package remote

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"
)

// RetryConfig controls exponential backoff for idempotent requests. The zero
// value disables retries.
type RetryConfig struct {
	MaxRetries int           // attempts after the first
	BaseDelay  time.Duration // default 200ms
	MaxDelay   time.Duration // default 2s
}

// DefaultRetryConfig is what the CLI uses unless configured otherwise.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// withRetry runs fn until it succeeds, fails with a non-retryable error, the
// attempts run out, or ctx ends. The last error is returned.
func withRetry(ctx context.Context, cfg RetryConfig, op string, fn func() error) error {
	base, maxDelay := cfg.BaseDelay, cfg.MaxDelay
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || attempt >= cfg.MaxRetries || !retryable(err) || ctx.Err() != nil {
			return err
		}
		delay := backoffWithJitter(base, maxDelay, attempt)
		slog.Debug("retrying remote request", "op", op, "attempt", attempt+1, "delay", delay, "error", err)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}

// retryable is true for network failures and gateway-type statuses. Decode
// failures and ordinary 4xx/5xx answers are final.
func retryable(err error) bool {
	var re *RequestError
	if errors.As(err, &re) {
		switch re.Status {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

// backoffWithJitter computes min(base * 2^attempt, max) plus or minus 25%.
func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	delay := base << uint(attempt)
	if delay > max || delay <= 0 {
		delay = max
	}
	quarter := delay / 4
	if quarter > 0 {
		delay += time.Duration(rand.Int64N(int64(quarter*2))) - quarter
	}
	return delay
}

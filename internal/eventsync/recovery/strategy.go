package recovery

import (
	"errors"
	"math"
	"time"
)

// jitterFraction bounds the random extra delay added to each backoff.
const jitterFraction = 0.1

// RetryConfig defines the retry policy for queued calendar operations.
type RetryConfig struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
}

// DefaultRetryConfig: 1s, 2s, 4s (max 30s), three retries.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:      3,
	BaseDelay:       1 * time.Second,
	MaxDelay:        30 * time.Second,
	ExponentialBase: 2,
}

// Validate checks the policy invariants.
func (c RetryConfig) Validate() error {
	switch {
	case c.MaxRetries < 0:
		return errors.New("max retries must be >= 0")
	case c.BaseDelay <= 0:
		return errors.New("base delay must be positive")
	case c.MaxDelay < c.BaseDelay:
		return errors.New("max delay must be >= base delay")
	case c.ExponentialBase < 1:
		return errors.New("exponential base must be >= 1")
	}
	return nil
}

// Exhausted reports whether attempt (1-based) is past the retry budget.
func (c RetryConfig) Exhausted(attempt int) bool {
	return attempt > c.MaxRetries
}

// BackoffDelay returns BaseDelay * ExponentialBase^(attempt-1), capped at MaxDelay.
func (c RetryConfig) BackoffDelay(attempt int) time.Duration {
	return c.capped(c.raw(attempt))
}

// Delay returns the backoff for attempt plus jitter, capped at MaxDelay.
// jitter is a sample from [0, 1) scaled to at most 10% of the backoff.
func (c RetryConfig) Delay(attempt int, jitter float64) time.Duration {
	jitter = math.Max(0, math.Min(jitter, 1))
	raw := c.raw(attempt)
	return c.capped(raw + jitter*jitterFraction*raw)
}

func (c RetryConfig) raw(attempt int) float64 {
	if attempt < 1 {
		attempt = 1
	}
	return float64(c.BaseDelay) * math.Pow(c.ExponentialBase, float64(attempt-1))
}

func (c RetryConfig) capped(delay float64) time.Duration {
	if math.IsInf(delay, 0) || math.IsNaN(delay) || delay > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(delay)
}

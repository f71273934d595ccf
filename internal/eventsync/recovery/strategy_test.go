package recovery

import (
	"testing"
	"time"
)

func TestRetryConfig_BackoffDelay(t *testing.T) {
	cfg := DefaultRetryConfig

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second}, // 32s capped
		{60, 30 * time.Second},
		{2000, 30 * time.Second}, // overflows to +Inf before capping
	}

	for _, tt := range tests {
		if got := cfg.BackoffDelay(tt.attempt); got != tt.want {
			t.Errorf("BackoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryConfig_JitterBounded(t *testing.T) {
	cfg := DefaultRetryConfig

	for attempt := 1; attempt <= 5; attempt++ {
		base := cfg.BackoffDelay(attempt)
		low := cfg.Delay(attempt, 0)
		high := cfg.Delay(attempt, 0.999999)

		if low != base {
			t.Errorf("attempt %d: zero jitter delay %v, want %v", attempt, low, base)
		}
		if high < base {
			t.Errorf("attempt %d: jittered delay %v below base %v", attempt, high, base)
		}
		limit := min(base+base/10, cfg.MaxDelay)
		if high > limit {
			t.Errorf("attempt %d: jittered delay %v exceeds %v", attempt, high, limit)
		}
	}
}

func TestRetryConfig_JitterNeverExceedsMax(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 1050 * time.Millisecond, ExponentialBase: 2}

	if got := cfg.Delay(1, 1); got != cfg.MaxDelay {
		t.Errorf("expected delay capped at %v, got %v", cfg.MaxDelay, got)
	}
}

func TestRetryConfig_Exhausted(t *testing.T) {
	cfg := DefaultRetryConfig

	if cfg.Exhausted(3) {
		t.Error("attempt 3 should be allowed with max 3")
	}
	if !cfg.Exhausted(4) {
		t.Error("attempt 4 should be exhausted with max 3")
	}

	zero := cfg
	zero.MaxRetries = 0
	if !zero.Exhausted(1) {
		t.Error("max 0 should exhaust on first attempt")
	}
}

func TestRetryConfig_Validate(t *testing.T) {
	if err := DefaultRetryConfig.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := []RetryConfig{
		{MaxRetries: -1, BaseDelay: time.Second, MaxDelay: time.Second, ExponentialBase: 2},
		{MaxRetries: 1, BaseDelay: 0, MaxDelay: time.Second, ExponentialBase: 2},
		{MaxRetries: 1, BaseDelay: 2 * time.Second, MaxDelay: time.Second, ExponentialBase: 2},
		{MaxRetries: 1, BaseDelay: time.Second, MaxDelay: time.Second, ExponentialBase: 0.5},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

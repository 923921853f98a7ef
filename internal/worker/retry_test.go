package worker

import (
	"testing"
	"time"
)

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // clamped to MaxDelay
		{10, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := policy.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	policy := RetryPolicy{}.withDefaults()

	if policy.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", policy.MaxRetries)
	}
	if policy.InitialDelay != 2*time.Second {
		t.Errorf("InitialDelay = %v, want 2s", policy.InitialDelay)
	}
	if policy.MaxDelay != time.Minute {
		t.Errorf("MaxDelay = %v, want 1m", policy.MaxDelay)
	}
	if policy.BackoffFactor != 2 {
		t.Errorf("BackoffFactor = %v, want 2", policy.BackoffFactor)
	}

	// partial overrides survive
	custom := RetryPolicy{MaxRetries: 3}.withDefaults()
	if custom.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", custom.MaxRetries)
	}
	if custom.InitialDelay != 2*time.Second {
		t.Errorf("InitialDelay = %v, want 2s", custom.InitialDelay)
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3}

	if policy.Exhausted(2) {
		t.Error("attempt 2 of 3 should not be exhausted")
	}
	if !policy.Exhausted(3) {
		t.Error("attempt 3 of 3 should be exhausted")
	}
}

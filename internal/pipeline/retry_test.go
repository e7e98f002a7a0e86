package pipeline

import (
	"errors"
	"testing"
	"time"

	"markdown-translator/internal/types"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", types.NewAppError(types.ErrNetwork, "dial failed", nil), true},
		{"rate limit", types.NewAppError(types.ErrAPIRateLimit, "429", nil), true},
		{"integrity", types.NewAppError(types.ErrTranslationIntegrity, "token lost", nil), true},
		{"server error", types.NewAppErrorWithDetails(types.ErrAPICall, "api", "status 502: bad gateway", nil), true},
		{"api error non-5xx", types.NewAppErrorWithDetails(types.ErrAPICall, "api", "status 418", nil), false},
		{"auth", types.NewAppError(types.ErrAuth, "401", nil), false},
		{"bad request", types.NewAppError(types.ErrBadRequest, "400", nil), false},
		{"config", types.NewAppError(types.ErrConfig, "no key", nil), false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecide_BudgetExhausted(t *testing.T) {
	p := newRetryPolicy(3)
	transient := types.NewAppError(types.ErrNetwork, "x", nil)

	if d := p.Decide(1, transient); !d.retry {
		t.Error("attempt 1 of 3 should retry")
	}
	if d := p.Decide(2, transient); !d.retry {
		t.Error("attempt 2 of 3 should retry")
	}
	if d := p.Decide(3, transient); d.retry {
		t.Error("attempt 3 of 3 must abandon")
	}
}

func TestDecide_PermanentAbandonsImmediately(t *testing.T) {
	p := newRetryPolicy(5)
	if d := p.Decide(1, types.NewAppError(types.ErrAuth, "401", nil)); d.retry {
		t.Error("permanent failure must not retry")
	}
}

// Backoff grows exponentially and never exceeds the cap even with jitter.
func TestDecide_BackoffGrowthAndCap(t *testing.T) {
	p := &retryPolicy{maxAttempts: 20, baseDelay: 2 * time.Second, maxDelay: 30 * time.Second}
	transient := types.NewAppError(types.ErrAPIRateLimit, "x", nil)

	var prevBase time.Duration
	for attempt := 1; attempt < 10; attempt++ {
		d := p.Decide(attempt, transient)
		if !d.retry {
			t.Fatalf("attempt %d should retry", attempt)
		}
		base := p.baseDelay << (attempt - 1)
		if base > p.maxDelay {
			base = p.maxDelay
		}
		// jitter is at most ±25% of the capped base
		min, max := base-base/4, base+base/4
		if d.delay < min || d.delay > max {
			t.Errorf("attempt %d delay %v outside [%v, %v]", attempt, d.delay, min, max)
		}
		if base < prevBase {
			t.Errorf("base delay shrank: %v after %v", base, prevBase)
		}
		prevBase = base
	}
}

func TestIsPermanentClass(t *testing.T) {
	if !isPermanentClass(types.NewAppError(types.ErrAuth, "x", nil)) {
		t.Error("auth should be permanent class")
	}
	if !isPermanentClass(types.NewAppError(types.ErrBadRequest, "x", nil)) {
		t.Error("bad request should be permanent class")
	}
	if isPermanentClass(types.NewAppError(types.ErrNetwork, "x", nil)) {
		t.Error("network should not be permanent class")
	}
}

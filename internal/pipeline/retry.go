package pipeline

import (
	"math/rand"
	"strings"
	"time"

	"markdown-translator/internal/types"
)

const (
	// DefaultMaxAttempts is the default per-chunk attempt budget
	DefaultMaxAttempts = 3
	// BaseRetryDelay is the base delay between retries (exponential backoff)
	BaseRetryDelay = 2 * time.Second
	// MaxRetryDelay caps the backoff delay
	MaxRetryDelay = 30 * time.Second
)

// decision is the retry controller's verdict for a failed job.
type decision struct {
	retry bool
	delay time.Duration
}

// retryPolicy governs the per-request retry policy for transient failures
// and rate limiting.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func newRetryPolicy(maxAttempts int) *retryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &retryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   BaseRetryDelay,
		maxDelay:    MaxRetryDelay,
	}
}

// Decide classifies the failure of a job on its attempts-th attempt.
// Transient failures get exponential backoff with jitter until the attempt
// budget is exhausted; permanent failures abandon immediately.
func (p *retryPolicy) Decide(attempts int, err error) decision {
	if !isTransient(err) {
		return decision{retry: false}
	}
	if attempts >= p.maxAttempts {
		return decision{retry: false}
	}

	// base * 2^(attempts-1), capped, with ±25% jitter
	delay := p.baseDelay << (attempts - 1)
	if delay > p.maxDelay {
		delay = p.maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2+1)) - delay/4
	return decision{retry: true, delay: delay + jitter}
}

// isTransient reports whether the error should trigger a retry: network
// errors, rate limiting, timeouts, server errors and placeholder integrity
// failures are transient; authentication failures and malformed requests
// are permanent.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	appErr, ok := err.(*types.AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case types.ErrNetwork, types.ErrAPIRateLimit, types.ErrTranslationIntegrity:
		return true
	case types.ErrAPICall:
		// Retry on server errors, but not on other API failures
		return strings.Contains(appErr.Details, "status 5")
	default:
		return false
	}
}

// isPermanentClass reports whether the error belongs to the permanent
// failure classes that should surface to the caller when no chunk succeeds.
func isPermanentClass(err error) bool {
	switch types.CodeOf(err) {
	case types.ErrAuth, types.ErrBadRequest:
		return true
	default:
		return false
	}
}

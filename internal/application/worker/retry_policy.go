package worker

import (
	"time"

	"documine/internal/domain/classify"
	"documine/internal/domain/entity"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxDelay    = 5 * time.Minute
)

// RetryPolicy decides whether a failed job is retried automatically and how
// long to wait before the next attempt. Only transient failures are
// eligible, attempts are bounded, and exhaustion escalates the
// classification to permanent so the controller can never retry forever.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewRetryPolicy creates a retry policy. Non-positive arguments fall back
// to the defaults.
func NewRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	return &RetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// MaxAttempts returns the retry budget.
func (p *RetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry reports whether the job gets another automatic attempt for
// the given classification.
func (p *RetryPolicy) ShouldRetry(job *entity.ProcessingJob, classification classify.Classification) bool {
	if !classification.AutoRetry || !classification.Category.AutoRetryable() {
		return false
	}
	return job.RetryCount() < p.maxAttempts
}

// NextAttemptDelay returns the exponential backoff delay before the given
// retry: base * 2^retryCount, capped at the maximum. Backoff spreads
// retries out so a struggling downstream dependency is not hammered by a
// thundering herd.
func (p *RetryPolicy) NextAttemptDelay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}

	delay := p.baseDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= p.maxDelay {
			return p.maxDelay
		}
	}
	if delay > p.maxDelay {
		return p.maxDelay
	}
	return delay
}

// Escalate returns the classification to persist when the retry budget for
// a transient failure is exhausted.
func (p *RetryPolicy) Escalate(classification classify.Classification) classify.Classification {
	if classification.Category.AutoRetryable() {
		return classify.RetriesExhausted()
	}
	return classification
}

package worker

import (
	"testing"
	"time"

	"documine/internal/domain/classify"
	"documine/internal/domain/entity"
	"documine/internal/domain/valueobject"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failedJobWithRetries(t *testing.T, retries int) *entity.ProcessingJob {
	t.Helper()
	job := entity.NewProcessingJob(uuid.New())
	for i := 0; i <= retries; i++ {
		require.NoError(t, job.Start())
		require.NoError(t, job.Fail(valueobject.ErrorCategoryTransient, "TIMEOUT", "slow"))
		if i < retries {
			require.NoError(t, job.ResetForRetry(0))
		}
	}
	return job
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	policy := NewRetryPolicy(3, time.Second, time.Minute)

	transient := classify.Classification{
		Category:  valueobject.ErrorCategoryTransient,
		Code:      "TIMEOUT",
		AutoRetry: true,
	}
	recoverable := classify.Classification{
		Category: valueobject.ErrorCategoryRecoverable,
		Code:     "PASSWORD_PROTECTED",
	}

	assert.True(t, policy.ShouldRetry(failedJobWithRetries(t, 0), transient))
	assert.True(t, policy.ShouldRetry(failedJobWithRetries(t, 2), transient))
	assert.False(t, policy.ShouldRetry(failedJobWithRetries(t, 3), transient), "budget exhausted")
	assert.False(t, policy.ShouldRetry(failedJobWithRetries(t, 0), recoverable), "recoverable never auto-retries")
}

func TestRetryPolicy_NextAttemptDelay(t *testing.T) {
	policy := NewRetryPolicy(5, 2*time.Second, 10*time.Second)

	assert.Equal(t, 2*time.Second, policy.NextAttemptDelay(0))
	assert.Equal(t, 4*time.Second, policy.NextAttemptDelay(1))
	assert.Equal(t, 8*time.Second, policy.NextAttemptDelay(2))
	assert.Equal(t, 10*time.Second, policy.NextAttemptDelay(3), "capped at max")
	assert.Equal(t, 10*time.Second, policy.NextAttemptDelay(10))
	assert.Equal(t, 2*time.Second, policy.NextAttemptDelay(-1))
}

func TestRetryPolicy_Escalate(t *testing.T) {
	policy := NewRetryPolicy(3, time.Second, time.Minute)

	escalated := policy.Escalate(classify.Classification{
		Category:  valueobject.ErrorCategoryTransient,
		Code:      "TIMEOUT",
		AutoRetry: true,
	})
	assert.Equal(t, classify.CodeMaxRetriesExceeded, escalated.Code)
	assert.Equal(t, valueobject.ErrorCategoryPermanent, escalated.Category)
	assert.False(t, escalated.AutoRetry)

	recoverable := classify.Classification{
		Category: valueobject.ErrorCategoryRecoverable,
		Code:     "PASSWORD_PROTECTED",
	}
	assert.Equal(t, recoverable, policy.Escalate(recoverable), "non-transient passes through")
}

func TestNewRetryPolicy_Defaults(t *testing.T) {
	policy := NewRetryPolicy(0, 0, 0)

	assert.Equal(t, DefaultMaxAttempts, policy.MaxAttempts())
	assert.Equal(t, DefaultBaseDelay, policy.NextAttemptDelay(0))
}

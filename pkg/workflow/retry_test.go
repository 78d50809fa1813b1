package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fieldline/slaflow/pkg/actions"
	"github.com/fieldline/slaflow/pkg/models"
)

func TestShouldRetry_BackoffProgression(t *testing.T) {
	transient := actions.Transient(errors.New("connection reset"))

	tests := []struct {
		retryCount int
		wantDelay  time.Duration
	}{
		{retryCount: 0, wantDelay: 5 * time.Second},
		{retryCount: 1, wantDelay: 10 * time.Second},
		{retryCount: 2, wantDelay: 20 * time.Second},
	}

	for _, tt := range tests {
		execution := &models.Execution{Status: models.ExecutionFailed, RetryCount: tt.retryCount}

		decision := ShouldRetry(execution, transient)
		assert.True(t, decision.Retry, "retry count %d", tt.retryCount)
		assert.Equal(t, tt.wantDelay, decision.Delay, "retry count %d", tt.retryCount)
	}

	// The fourth failure exhausts the budget.
	exhausted := &models.Execution{Status: models.ExecutionFailed, RetryCount: 3}
	assert.False(t, ShouldRetry(exhausted, transient).Retry)
}

func TestShouldRetry_DelayCapped(t *testing.T) {
	assert.Equal(t, 5*time.Minute, backoff(10))
}

func TestShouldRetry_TerminalErrorsNeverRetry(t *testing.T) {
	execution := &models.Execution{Status: models.ExecutionFailed}

	assert.False(t, ShouldRetry(execution, errors.New("validation rejected")).Retry)
}

func TestShouldRetry_CancelledNeverRetries(t *testing.T) {
	execution := &models.Execution{Status: models.ExecutionCancelled}
	transient := actions.Transient(errors.New("timeout"))

	assert.False(t, ShouldRetry(execution, transient).Retry)
}

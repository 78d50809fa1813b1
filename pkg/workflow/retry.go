package workflow

import (
	"time"

	"github.com/fieldline/slaflow/pkg/actions"
	"github.com/fieldline/slaflow/pkg/models"
)

const (
	maxRetries     = 3
	retryBaseDelay = 5 * time.Second
	retryMaxDelay  = 5 * time.Minute
)

// RetryDecision is the retry policy's answer for one failure.
type RetryDecision struct {
	Retry bool
	Delay time.Duration
}

// ShouldRetry decides whether a failed execution re-enters the action loop.
// Only transient failures retry, a cancelled execution never does, and the
// execution's retry counter caps total attempts. Backoff doubles from the base
// per attempt and is capped.
func ShouldRetry(execution *models.Execution, err error) RetryDecision {
	if execution.Status == models.ExecutionCancelled {
		return RetryDecision{}
	}

	if !actions.IsTransient(err) {
		return RetryDecision{}
	}

	if execution.RetryCount >= maxRetries {
		return RetryDecision{}
	}

	return RetryDecision{Retry: true, Delay: backoff(execution.RetryCount + 1)}
}

// backoff computes the delay before the nth retry attempt (1-based).
func backoff(attempt int) time.Duration {
	delay := retryBaseDelay

	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= retryMaxDelay {
			return retryMaxDelay
		}
	}

	return delay
}

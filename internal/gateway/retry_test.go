package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Decide(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 3,
		BackoffBase: 2 * time.Second,
		BackoffCap:  10 * time.Second,
	}

	t.Run("transport errors back off exponentially", func(t *testing.T) {
		err := &attemptError{class: classTransport}

		first := policy.Decide(0, err)
		assert.True(t, first.Retry)
		assert.True(t, first.Counted)
		assert.Equal(t, 2*time.Second, first.Delay)

		second := policy.Decide(1, err)
		assert.True(t, second.Retry)
		assert.Equal(t, 4*time.Second, second.Delay)
	})

	t.Run("budget exhausted gives up", func(t *testing.T) {
		decision := policy.Decide(2, &attemptError{class: classServer})
		assert.False(t, decision.Retry)
	})

	t.Run("backoff is capped", func(t *testing.T) {
		wide := RetryPolicy{MaxAttempts: 10, BackoffBase: 2 * time.Second, BackoffCap: 10 * time.Second}
		decision := wide.Decide(5, &attemptError{class: classServer})
		assert.Equal(t, 10*time.Second, decision.Delay)
	})

	t.Run("rate limit waits without consuming budget", func(t *testing.T) {
		decision := policy.Decide(2, &attemptError{class: classRateLimited, retryAfter: 30 * time.Second})
		assert.True(t, decision.Retry)
		assert.False(t, decision.Counted)
		assert.Equal(t, 30*time.Second, decision.Delay)
	})

	t.Run("terminal rejection never retries", func(t *testing.T) {
		decision := policy.Decide(0, &attemptError{class: classTerminal})
		assert.False(t, decision.Retry)
	})
}

package gateway

import "time"

// errorClass buckets a failed attempt for retry decisions.
type errorClass int

const (
	classTransport errorClass = iota // timeout, connection error
	classServer                      // HTTP 5xx
	classRateLimited                 // HTTP 429
	classTerminal                    // HTTP 4xx other than 429
)

// attemptError carries the classification and detail of one failed attempt.
type attemptError struct {
	class      errorClass
	message    string
	code       int
	retryAfter time.Duration
}

func (e *attemptError) Error() string {
	return e.message
}

// RetryDecision tells the dispatch loop what to do after a failed attempt.
type RetryDecision struct {
	Retry bool
	Delay time.Duration
	// Counted is false when the wait does not consume the retry budget,
	// as for server-directed rate limit waits.
	Counted bool
}

// RetryPolicy maps (attempt index, failed attempt) to a decision. Attempt
// indexes are zero-based and count only budget-consuming attempts.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Decide implements the policy: transport and 5xx failures retry with
// exponential backoff until the budget is spent; 429 waits for the
// server-supplied delay without consuming the budget; everything else
// gives up immediately.
func (p RetryPolicy) Decide(attempt int, err *attemptError) RetryDecision {
	switch err.class {
	case classRateLimited:
		return RetryDecision{Retry: true, Delay: err.retryAfter, Counted: false}
	case classTransport, classServer:
		if attempt+1 >= p.MaxAttempts {
			return RetryDecision{}
		}
		delay := p.BackoffBase << uint(attempt)
		if delay > p.BackoffCap {
			delay = p.BackoffCap
		}
		return RetryDecision{Retry: true, Delay: delay, Counted: true}
	default:
		return RetryDecision{}
	}
}

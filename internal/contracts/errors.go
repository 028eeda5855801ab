package contracts

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fetch/plan/execute paths. Callers classify
// with errors.Is.
var (
	// ErrInsufficientHistory means an indicator could not be computed
	// because fewer trailing bars exist than the window requires. It is
	// never reported as a zero value.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrRateLimited means the data source rejected the request for
	// exceeding its rate budget. Retryable after backoff.
	ErrRateLimited = errors.New("rate limited by data source")

	// ErrNotFound means the instrument or resource does not exist at
	// the source. Not retryable.
	ErrNotFound = errors.New("not found")

	// ErrTransient covers timeouts and 5xx responses. Retryable.
	ErrTransient = errors.New("transient upstream failure")

	// ErrDuplicateSignal means a signal with the same identity already
	// exists; planning treats it as an idempotent no-op.
	ErrDuplicateSignal = errors.New("duplicate signal")

	// ErrCycleInProgress means another rebalance cycle holds the
	// portfolio lock.
	ErrCycleInProgress = errors.New("rebalance cycle already in progress")

	// ErrRebalanceNotDue means the frequency gate rejected the run.
	ErrRebalanceNotDue = errors.New("rebalance not due")

	// ErrInsufficientFunds means buy sizing found no investable cash.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidInstrument means the instrument is unknown or inactive.
	ErrInvalidInstrument = errors.New("invalid instrument")

	// ErrOrderRejected means the broker refused the order.
	ErrOrderRejected = errors.New("order rejected by broker")
)

// FetchError wraps a failure to fetch bars for one instrument, keeping
// the classification sentinel in the chain.
type FetchError struct {
	Instrument string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch bars for %s: %v", e.Instrument, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsRetryableFetch reports whether a fetch failure is worth retrying.
func IsRetryableFetch(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}

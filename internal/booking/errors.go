package booking

import "fmt"

// ValidationError covers malformed input: bad or past travel dates,
// non-positive seat counts, mismatched passenger lists. Always raised
// before any store access, so callers can simply re-prompt.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// InsufficientSeatsError is raised inside the locked transaction when the
// authoritative snapshot holds fewer free seats than requested.
type InsufficientSeatsError struct {
	TrainNumber string
	Requested   int
	Available   int
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("not enough seats on train %s: requested %d, available %d",
		e.TrainNumber, e.Requested, e.Available)
}

// StoreError wraps connectivity failures, lock timeouts and constraint
// violations from the durable store. Fatal for the current operation,
// retryable for the caller.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

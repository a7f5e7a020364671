package models

import (
	"errors"
	"fmt"
)

// ErrCapacityExceeded rejects batches over the documented API cap before any
// processing begins.
var ErrCapacityExceeded = errors.New("batch size exceeds the allowed maximum")

// BackendUnavailableError marks connection failures and timeouts; the
// orchestrator treats it as a signal to try the fallback backend.
type BackendUnavailableError struct {
	Backend string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("%s backend unavailable: %v", e.Backend, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// BackendCallError marks a reachable backend that returned an error status or
// a malformed payload.
type BackendCallError struct {
	Backend string
	Status  int
	Message string
}

func (e *BackendCallError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s backend error %d: %s", e.Backend, e.Status, e.Message)
	}
	return fmt.Sprintf("%s backend error: %s", e.Backend, e.Message)
}

// ParseError carries the raw LLM output that could not be coerced to the
// expected JSON structure after all sanitization attempts.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse structured LLM output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is a connection/timeout class failure
// eligible for cross-backend fallback.
func IsUnavailable(err error) bool {
	var ue *BackendUnavailableError
	return errors.As(err, &ue)
}

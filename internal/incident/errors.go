package incident

import (
	"errors"
	"fmt"
)

var (
	ErrMissingTrigger = errors.New("missing trigger_id")

	// Alert backend errors. Rate limiting and unreachability are worth a later
	// retry by the caller; BackendError with a 4xx status is not.
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrUnreachable  = errors.New("alert backend unreachable")
	ErrConnectivity = errors.New("alert backend connectivity check failed")
)

type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("alert backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("alert backend returned status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the failure came from the server side.
func (e *BackendError) Retryable() bool {
	return e.StatusCode >= 500
}

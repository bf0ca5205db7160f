package executor

import (
	"fmt"

	"github.com/studiowebux/caller/internal/codes"
	"github.com/studiowebux/caller/internal/types"
)

// InvalidRequestError reports a caller-side contract violation detected before any network I/O
type InvalidRequestError struct {
	Method types.Method
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Method, e.Reason)
}

// FailedCallError is returned when the last response matched the fail codes.
// Responses holds every attempt, oldest first.
type FailedCallError struct {
	Status    int
	Attempts  int
	Responses types.History
}

// NewFailedCallError builds the error from the full attempt history
func NewFailedCallError(responses types.History) *FailedCallError {
	status := 0
	if last, ok := responses.Last(); ok {
		status = last.Status
	}
	return &FailedCallError{
		Status:    status,
		Attempts:  len(responses),
		Responses: responses,
	}
}

func (e *FailedCallError) Error() string {
	return fmt.Sprintf("failing due to status code %s after %d attempt(s)", codes.Pad(e.Status), e.Attempts)
}

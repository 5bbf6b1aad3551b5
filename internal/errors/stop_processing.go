package errors

import "errors"

// StopProcessingError signals that the user aborted an interactive step
// (e.g., quitting the result picker). Commands treat it as a clean exit.
type StopProcessingError struct {
	Reason string
}

func (e *StopProcessingError) Error() string {
	return e.Reason
}

// ErrSelectionCancelled is returned by the result picker when the user quits
// without choosing a book.
var ErrSelectionCancelled = NewStopProcessingError("selection cancelled")

// NewStopProcessingError creates a StopProcessingError with the provided reason.
func NewStopProcessingError(reason string) *StopProcessingError {
	return &StopProcessingError{Reason: reason}
}

// IsStopProcessingError reports whether err is a StopProcessingError (even when wrapped).
func IsStopProcessingError(err error) bool {
	var stopErr *StopProcessingError
	return errors.As(err, &stopErr)
}

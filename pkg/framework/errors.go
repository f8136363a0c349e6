package framework

import (
	"errors"
	"strings"
)

// AggregatedError collects independent failures, e.g. every violated
// constraint of a configuration record, or every resource that failed to
// close on shutdown. Nested AggregatedErrors are flattened.
type AggregatedError struct {
	Errors []error
}

// Error implements error
func (e *AggregatedError) Error() string {
	if len(e.Errors) == 0 {
		return ""
	}
	msg := make([]string, len(e.Errors)+1)
	msg[0] = "Multiple errors:"
	for n, err := range e.Errors {
		msg[n+1] = err.Error()
	}
	return strings.Join(msg, "\n")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *AggregatedError) Unwrap() []error {
	return e.Errors
}

// Add adds errors to be aggregated. nil is skipped.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		var agg *AggregatedError
		switch {
		case err == nil:
		case errors.As(err, &agg):
			e.Errors = append(e.Errors, agg.Errors...)
		default:
			e.Errors = append(e.Errors, err)
		}
	}
	return e
}

// Len returns the number of aggregated errors.
func (e *AggregatedError) Len() int {
	return len(e.Errors)
}

// Aggregate returns nil when nothing failed, the error itself when exactly
// one did, and the AggregatedError otherwise.
func (e *AggregatedError) Aggregate() error {
	switch len(e.Errors) {
	case 0:
		return nil
	case 1:
		return e.Errors[0]
	}
	return e
}

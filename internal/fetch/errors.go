package fetch

import "fmt"

// TransportError covers non-2xx responses, connection failures, and
// timeouts. It carries the status code when one was received.
type TransportError struct {
	StatusCode int
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("transport failure: %v", e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// InvalidFormatError means the fetched content failed playlist-shape
// validation: an HTML error/login page behind a 200, a truncated body, or
// text missing every playlist marker.
type InvalidFormatError struct {
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid playlist: %s", e.Reason)
}

package gateway

import (
	"errors"
	"fmt"
)

// ConnectionError reports a transport failure or a non-200 response.
type ConnectionError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ConnectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("cannot connect to %s: HTTP %d", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("cannot connect to %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// InvalidResponseError reports a body that is not a usable status document.
type InvalidResponseError struct {
	URL    string
	Reason string
	Err    error
}

func (e *InvalidResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid response from %s: %s: %v", e.URL, e.Reason, e.Err)
	}

	return fmt.Sprintf("invalid response from %s: %s", e.URL, e.Reason)
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

// Error codes reported to the user when a probe fails.
const (
	CodeCannotConnect = "cannot_connect"
	CodeInvalidData   = "invalid_data"
	CodeUnknown       = "unknown"
)

// ErrorCode classifies a Probe error.
func ErrorCode(err error) string {
	var ce *ConnectionError
	var ie *InvalidResponseError
	switch {
	case errors.As(err, &ce):
		return CodeCannotConnect
	case errors.As(err, &ie):
		return CodeInvalidData
	default:
		return CodeUnknown
	}
}

package sumtype

import (
	"errors"
	"fmt"
)

const MAX_PAYLOAD_SIZE_IN_ERRORS = 200

var (
	ErrEmptyValue          = errors.New("sum type value holds no alternative")
	ErrAlternativeMismatch = errors.New("value does not match the alternative")
	ErrNoAlternatives      = errors.New("a sum type should have at least one alternative")
)

// UnhandledAlternativeError is returned by Match when no handler is provided for the stored alternative.
type UnhandledAlternativeError struct {
	Union       string
	Alternative string
	Index       int
}

func (e *UnhandledAlternativeError) Error() string {
	return fmt.Sprintf("%s: no handler for alternative %d (%s)", e.Union, e.Index, e.Alternative)
}

// NoMatchingAlternativeError is returned when a payload does not match any alternative.
type NoMatchingAlternativeError struct {
	Union   string
	Payload string
}

func (e *NoMatchingAlternativeError) Error() string {
	return fmt.Sprintf("%s: payload matches no alternative: %s", e.Union, e.Payload)
}

func newNoMatchingAlternativeError(union string, data []byte) *NoMatchingAlternativeError {
	payload := string(data)
	if len(payload) > MAX_PAYLOAD_SIZE_IN_ERRORS {
		payload = payload[:MAX_PAYLOAD_SIZE_IN_ERRORS] + "..."
	}
	return &NoMatchingAlternativeError{Union: union, Payload: payload}
}

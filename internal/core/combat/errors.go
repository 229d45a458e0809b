package combat

import "errors"

var (
	// ErrMalformedPayload rejects numerically invalid input before any state
	// is touched.
	ErrMalformedPayload = errors.New("malformed combat payload")
	ErrUnknownSource    = errors.New("unknown damage source")
)

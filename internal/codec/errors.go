package codec

import (
	"errors"
	"fmt"
)

// ErrEmptyPattern means the input decoded without error but held no pattern.
var ErrEmptyPattern = errors.New("could not parse embroidery file")

// DecodeError reports input bytes that could not be read as a known format.
type DecodeError struct {
	Format string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "failed to read file"
	if e.Format != "" {
		msg += " as " + e.Format
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports a pattern that could not be written.
// Unsupported is set when the target format is unknown or cannot be written at all.
type EncodeError struct {
	Format      string
	Reason      string
	Unsupported bool
	Err         error
}

func (e *EncodeError) Error() string {
	msg := fmt.Sprintf("failed to write file as %s", e.Format)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodeError) Unwrap() error { return e.Err }

func decodeErr(format string, err error) error {
	return &DecodeError{Format: format, Err: err}
}

func encodeErr(format string, err error) error {
	return &EncodeError{Format: format, Err: err}
}

// IsClientError reports whether err was caused by the request rather than by needle.
func IsClientError(err error) bool {
	if errors.Is(err, ErrEmptyPattern) {
		return true
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return true
	}
	var ee *EncodeError
	if errors.As(err, &ee) {
		return ee.Unsupported
	}
	return false
}

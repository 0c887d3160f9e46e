package forsys

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingHeader matches every *HeaderError.
	ErrMissingHeader = errors.New("missing forsys output header")
	// ErrMalformedInput matches every *MalformedInputError.
	ErrMalformedInput = errors.New("malformed forsys output")
	// ErrInvalidParams is returned when Params fail validation.
	ErrInvalidParams = errors.New("invalid parameters")
)

// HeaderError reports the first expected column absent from the engine output.
type HeaderError struct {
	Header string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("header, %s, is not a forsys output header", e.Header)
}

func (e *HeaderError) Is(target error) bool { return target == ErrMissingHeader }

// MalformedInputError reports a value that cannot be used as-is. Row is the
// zero-based data row.
type MalformedInputError struct {
	Row    int
	Column string
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed forsys output at row %d, column %s: %s", e.Row, e.Column, e.Reason)
}

func (e *MalformedInputError) Is(target error) bool { return target == ErrMalformedInput }

func (e *MalformedInputError) Unwrap() error { return e.Err }

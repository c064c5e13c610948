package codec

import (
	"errors"
	"fmt"
)

// ErrSinkClosed matches any SinkClosedError.
var ErrSinkClosed = errors.New("sink closed")

// SinkClosedError is returned when the output sink stops accepting data, or
// the context is canceled, before encoding completes.
type SinkClosedError struct {
	Err error
}

func (e *SinkClosedError) Error() string {
	return fmt.Sprintf("sink closed: %v", e.Err)
}

func (e *SinkClosedError) Unwrap() error {
	return e.Err
}

func (e *SinkClosedError) Is(target error) bool {
	if target == ErrSinkClosed {
		return true
	}
	_, ok := target.(*SinkClosedError)
	return ok
}

// EncodingError is returned for codec-level failures such as unset values,
// truncated input or unknown sequence markers. Path is the variable being
// encoded or decoded.
type EncodingError struct {
	Path string
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding %s: %v", e.Path, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

func (e *EncodingError) Is(target error) bool {
	_, ok := target.(*EncodingError)
	return ok
}

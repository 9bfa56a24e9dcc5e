package wire

import (
	"errors"
	"fmt"
	"strings"
)

// Decode/encode error kinds. Every one of them is unrecoverable for the
// current operation: the whole top-level decode fails and the caller must
// discard the attempt together with any arena-backed partial state.
var (
	// ErrMalformedVarint indicates a varint whose continuation chain does
	// not terminate within 10 bytes.
	ErrMalformedVarint = errors.New("wire: malformed varint")

	// ErrInvalidTag indicates a tag carrying field number 0 or an
	// undecodable wire type.
	ErrInvalidTag = errors.New("wire: invalid field tag")

	// ErrTruncatedMessage indicates the input ended in the middle of a
	// primitive or a length-delimited field.
	ErrTruncatedMessage = errors.New("wire: truncated message")

	// ErrRecursionLimit indicates message nesting deeper than the
	// configured maximum.
	ErrRecursionLimit = errors.New("wire: recursion limit exceeded")

	// ErrUnsupportedGroup indicates a legacy start-group or end-group wire
	// type, which this codec does not encode or decode.
	ErrUnsupportedGroup = errors.New("wire: group wire types are not supported")

	// ErrCancelled indicates the decode operation's context was cancelled
	// at a suspension point.
	ErrCancelled = errors.New("wire: decode cancelled")

	// ErrNeedMoreData is the suspension signal: the cursor ran out of
	// buffered bytes but its chunk source is not exhausted yet. The cursor
	// position is restored exactly, so the read can be retried once more
	// data arrives. Never returned by a contiguous-buffer cursor.
	ErrNeedMoreData = errors.New("wire: need more data")
)

// FieldError carries the proto field path at which an encode or decode
// failed, so nested failures stay diagnosable.
type FieldError struct {
	FieldPath []string // e.g. ["person", "phones", "number"]
	Err       error    // underlying error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if len(e.FieldPath) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("error at proto path %s: %v", strings.Join(e.FieldPath, "."), e.Err)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// wrapWithField prefixes an error's field path with fieldName.
func wrapWithField(err error, fieldName string) error {
	if err == nil {
		return nil
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		return &FieldError{
			FieldPath: append([]string{fieldName}, fe.FieldPath...),
			Err:       fe.Err,
		}
	}
	return &FieldError{
		FieldPath: []string{fieldName},
		Err:       err,
	}
}

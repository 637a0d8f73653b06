package transcript

import (
	"errors"
	"fmt"
)

// ErrMalformedSegment marks segments that violate the structural invariants
// (missing fields, negative start, end before start).
var ErrMalformedSegment = errors.New("malformed segment")

// MalformedSegmentError reports which segment failed validation.
type MalformedSegmentError struct {
	Index  int
	Reason string
}

func (e *MalformedSegmentError) Error() string {
	return fmt.Sprintf("%s %d: %s", ErrMalformedSegment, e.Index, e.Reason)
}

// Is allows errors.Is(err, ErrMalformedSegment).
func (e *MalformedSegmentError) Is(target error) bool {
	return target == ErrMalformedSegment
}

// Malformed builds a MalformedSegmentError for the segment at index.
func Malformed(index int, format string, args ...any) error {
	return &MalformedSegmentError{Index: index, Reason: fmt.Sprintf(format, args...)}
}

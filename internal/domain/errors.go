package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a lookup for a record that never existed.
var ErrNotFound = errors.New("not found")

// ErrCorruptState marks a persisted record that exists but cannot be
// decoded. Kept distinct from ErrNotFound so operators can tell
// "never existed" from "damaged".
var ErrCorruptState = errors.New("corrupt state")

// ShapeError reports an embedding dimensionality mismatch between a
// query vector and the indexed corpus. It usually signals corpus/model
// version skew.
type ShapeError struct {
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: index has %d, got %d", e.Want, e.Got)
}

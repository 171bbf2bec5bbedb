// Package id provides UUIDv7 identity generation for all entities.
// UUIDv7 embeds a Unix timestamp in the leading bits, so identifiers sort
// chronologically. The FIFO allocator relies on this: ascending lot id is a
// faithful insertion-order tie-break for lots sharing an ingress date.
package id

import (
	"bytes"

	"github.com/google/uuid"
)

// ID is a type alias for UUID, used across all entities.
type ID = uuid.UUID

// New generates a time-ordered UUIDv7.
func New() ID {
	v7, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 if V7 fails (should never happen)
		return uuid.New()
	}
	return v7
}

// Parse converts a string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts a string to ID, panicking on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil is the zero-value UUID. In exit allocations the nil lot id marks
// legacy exits that were never tied to a lot.
var Nil = uuid.Nil

// IsNil checks whether id is the zero value.
func IsNil(id ID) bool {
	return id == uuid.Nil
}

// Less reports whether a sorts before b by raw byte order.
// For UUIDv7 values this is creation order.
func Less(a, b ID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

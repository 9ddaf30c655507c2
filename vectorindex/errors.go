package vectorindex

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrDuplicateID is returned when adding a chunk ID that already has a live row.
	ErrDuplicateID = errors.New("duplicate chunk id")

	// ErrLengthMismatch is returned when ids and vectors differ in length.
	ErrLengthMismatch = errors.New("ids and vectors differ in length")

	// ErrInvalidSnapshot is returned when a snapshot file cannot be decoded.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

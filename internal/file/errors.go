package file

import "errors"

var (
	// ErrNotFound covers both a missing file and a file the caller has no
	// access to. Callers without any grant cannot learn that a file exists.
	ErrNotFound = errors.New("file: not found")

	// ErrForbidden is returned only to callers who already have some
	// access but lack the level the operation requires.
	ErrForbidden = errors.New("file: forbidden")

	ErrInvalidInput = errors.New("file: invalid input")
)

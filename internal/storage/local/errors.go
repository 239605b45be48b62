package local

import "errors"

var (
	// ErrNotFound is returned when a record file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("transaction already finished")
)

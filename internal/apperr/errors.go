// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidPassword = errors.New("invalid password")
	ErrWrongPassword   = errors.New("wrong password")
	ErrNotStarted      = errors.New("store not started")
	ErrAlreadyStarted  = errors.New("store already started")
	ErrUnsupported     = errors.New("operation not supported")
	ErrNothingToUndo   = errors.New("nothing to undo")
)

package persistence

import "errors"

// ErrInvalidInput is returned before any statement runs.
var ErrInvalidInput = errors.New("invalid input")

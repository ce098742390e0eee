package service

import "errors"

// ErrInvalidInput marks a request the caller must correct.
var ErrInvalidInput = errors.New("invalid input")

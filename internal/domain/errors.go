package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid state")
	ErrDuplicateOperation = errors.New("duplicate operation")
	ErrRunnerFailure      = errors.New("runner failure")
)

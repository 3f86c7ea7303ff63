package audit

import "errors"

var (
	// ErrInvalidInput indicates an event without an action or a missing log key.
	ErrInvalidInput = errors.New("invalid audit input")
	// ErrInvalidScope indicates an unknown scope value.
	ErrInvalidScope = errors.New("invalid audit scope")
)

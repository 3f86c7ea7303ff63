package diagnosis

import "errors"

var (
	// ErrDiagnosisNotFound indicates no diagnosis exists for the user and case.
	ErrDiagnosisNotFound = errors.New("diagnosis not found")
	// ErrInvalidInput indicates invalid diagnosis input.
	ErrInvalidInput = errors.New("invalid diagnosis input")
)

package sheet

import "errors"

var (
	// ErrNotFound covers a missing exam, student, sheet or question set.
	ErrNotFound = errors.New("not found")
	// ErrValidation covers missing or unusable request input.
	ErrValidation = errors.New("validation error")
)

package core

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every failure the engine returns wraps exactly one of these
// four sentinels, so callers classify with errors.Is and never parse messages.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
)

var (
	ErrInvalidAmount    = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	ErrEmptyName        = fmt.Errorf("%w: name cannot be empty", ErrValidation)
	ErrEmptyDescription = fmt.Errorf("%w: description cannot be empty", ErrValidation)
	ErrInvalidDay       = fmt.Errorf("%w: day must be in the range [1, 31]", ErrValidation)
	ErrInvalidFrequency = fmt.Errorf("%w: unknown frequency", ErrValidation)
	ErrInvalidDateRange = fmt.Errorf("%w: end date must not be before start date", ErrValidation)
)

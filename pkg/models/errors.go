package models

import "errors"

// Error kinds shared by every service. Wrap them with fmt.Errorf("%w: ...")
// and test with errors.Is.
var (
	ErrValidation            = errors.New("validation error")
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrClassifierUnavailable = errors.New("classifier unavailable")
)

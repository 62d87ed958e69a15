package fingerprint

import "errors"

// UnavailableError signals that a fingerprint could not be produced or
// compared. It is always recoverable: drift analysis proceeds and the match
// score degrades to zero.
type UnavailableError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// NewUnavailableError creates a new unavailability error
func NewUnavailableError(path, message string, cause error) *UnavailableError {
	return &UnavailableError{
		Path:    path,
		Message: message,
		Cause:   cause,
	}
}

// IsUnavailable reports whether err is a fingerprint unavailability
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

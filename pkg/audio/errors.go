package audio

import "errors"

// AudioError represents decode and analysis preprocessing errors
type AudioError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AudioError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AudioError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeUnsupportedContainer = "UNSUPPORTED_CONTAINER"
	ErrCodeDecodeFailed         = "DECODE_FAILED"
	ErrCodeNoAudio              = "NO_AUDIO"
	ErrCodeEmptyInput           = "EMPTY_INPUT"
	ErrCodeMismatchedParams     = "MISMATCHED_PARAMETERS"
	ErrCodeProbeFailed          = "PROBE_FAILED"
)

// NewAudioError creates a new audio error
func NewAudioError(path, code, message string, cause error) *AudioError {
	return &AudioError{
		Path:    path,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsCode reports whether err is an AudioError carrying the given code
func IsCode(err error, code string) bool {
	var ae *AudioError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

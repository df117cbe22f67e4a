package core

import "fmt"

// Error codes
const (
	ErrCodeMissingCacheSelector    = "MISSING_CACHE_SELECTOR"
	ErrCodeUnknownCacheBackend     = "UNKNOWN_CACHE_BACKEND"
	ErrCodeMissingProviderSelector = "MISSING_PROVIDER_SELECTOR"
	ErrCodeUnknownProviderBackend  = "UNKNOWN_PROVIDER_BACKEND"
	ErrCodeMissingField            = "MISSING_REQUIRED_FIELD"
	ErrCodeLocalPathRequired       = "LOCAL_PATH_REQUIRED"
	ErrCodeRemoteBaseDir           = "AMBIGUOUS_REMOTE_BASE"
	ErrCodeMalformedBounds         = "MALFORMED_BOUNDS"
	ErrCodeIncompleteBounds        = "INCOMPLETE_BOUNDS"
	ErrCodeUnknownProjection       = "UNKNOWN_PROJECTION"
	ErrCodeClassLoad               = "CLASS_LOAD_ERROR"
	ErrCodeBadPlugin               = "BAD_PLUGIN_RESULT"
)

// ConfigurationError is the single error kind surfaced for every user-facing
// configuration problem: schema shape errors, unknown backend names, and
// wrapped class-loader failures all use it. Scalar coercion failures do not;
// those propagate as raw cast/parse errors.
type ConfigurationError struct {
	Code    string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewError creates a new ConfigurationError with the given code and message
func NewError(code, message string) *ConfigurationError {
	return &ConfigurationError{Code: code, Message: message}
}

// NewErrorf creates a new ConfigurationError with the given code and formatted message
func NewErrorf(code, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError keeps the underlying cause available to errors.Is/As while the
// message stays the user-facing text.
func WrapError(code string, err error, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

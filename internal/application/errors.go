package application

import "errors"

var (
	// ErrUnauthorized is returned when no authenticated principal is present.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist or the
	// principal has no relationship with it.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when a uniqueness rule rejects the write.
	ErrConflict = errors.New("application: conflict")
	// ErrProviderUnavailable is returned when the external calendar provider
	// cannot be reached during an explicit sync.
	ErrProviderUnavailable = errors.New("application: calendar provider unavailable")
	// ErrProviderCredentialMissing is returned when an explicit sync is requested
	// without a provider access credential.
	ErrProviderCredentialMissing = errors.New("application: calendar provider credential missing")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func newValidationError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

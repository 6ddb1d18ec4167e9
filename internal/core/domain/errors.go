package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("already exists")
)

// AuthError is a credential or session failure. Reason is safe to show to the user.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return "auth: " + e.Reason + ": " + e.Err.Error()
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError is a read-query failure.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string { return "fetch " + e.Op + ": " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// WriteError is a create, update or delete failure.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string { return "write " + e.Op + ": " + e.Err.Error() }
func (e *WriteError) Unwrap() error { return e.Err }

// UploadError is an attachment transfer failure.
type UploadError struct {
	Filename string
	Err      error
}

func (e *UploadError) Error() string { return "upload " + e.Filename + ": " + e.Err.Error() }
func (e *UploadError) Unwrap() error { return e.Err }

// GeolocationError covers missing, invalid or unresolvable coordinates.
type GeolocationError struct {
	Reason string
	Err    error
}

func (e *GeolocationError) Error() string {
	if e.Err != nil {
		return "geolocation: " + e.Reason + ": " + e.Err.Error()
	}
	return "geolocation: " + e.Reason
}

func (e *GeolocationError) Unwrap() error { return e.Err }

func NewAuthError(reason string, err error) error { return &AuthError{Reason: reason, Err: err} }
func NewFetchError(op string, err error) error    { return &FetchError{Op: op, Err: err} }
func NewWriteError(op string, err error) error    { return &WriteError{Op: op, Err: err} }
func NewUploadError(name string, err error) error { return &UploadError{Filename: name, Err: err} }
func NewGeolocationError(reason string, err error) error {
	return &GeolocationError{Reason: reason, Err: err}
}

package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Entity string
}

func NewNotFoundError(entity string) error {
	return &NotFoundError{Entity: entity}
}

func (err NotFoundError) Error() string {
	return err.Entity + " not found"
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// AuthorizationError is returned when the actor may not act on the target.
type AuthorizationError struct {
	Reason string
}

func NewAuthorizationError(reason string) error {
	return &AuthorizationError{Reason: reason}
}

func (err AuthorizationError) Error() string {
	if err.Reason == "" {
		return "permission denied"
	}
	return err.Reason
}

func IsAuthorization(err error) bool {
	_, ok := errors.Cause(err).(*AuthorizationError)
	return ok
}

// StorageError wraps a failure of the file storage backend.
type StorageError struct {
	Op   string // write | delete | read
	Path string
	Err  error
}

func NewStorageError(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}

func (err StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", err.Op, err.Path, err.Err)
}

func (err StorageError) Cause() error  { return err.Err }
func (err StorageError) Unwrap() error { return err.Err }

func IsStorage(err error) bool {
	for err != nil {
		if _, ok := err.(*StorageError); ok {
			return true
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = cause.Cause()
	}
	return false
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

// PrefixFields prefixes the field names of a *ValidationError with prefix + ".".
// Other errors are returned unchanged.
func PrefixFields(err error, prefix string) error {
	vErr, ok := errors.Cause(err).(*ValidationError)
	if !ok {
		return err
	}
	flds := make([]FieldError, 0, len(vErr.Fields))
	for _, f := range vErr.Fields {
		flds = append(flds, FieldError{Field: prefix + "." + f.Field, Error: f.Error})
	}
	return &ValidationError{Err: vErr.Err, Fields: flds}
}

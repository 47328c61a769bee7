package fields

import (
	"errors"
	"fmt"
)

// Validation error kinds. A *ValidationError unwraps to one of these, so
// callers can branch with errors.Is.
var (
	ErrRequiredFieldMissing   = errors.New("required field missing")
	ErrInvalidNumber          = errors.New("invalid number")
	ErrInvalidDate            = errors.New("invalid date")
	ErrInvalidEmail           = errors.New("invalid email")
	ErrInvalidPhone           = errors.New("invalid phone")
	ErrInvalidOption          = errors.New("invalid option")
	ErrInvalidOptionList      = errors.New("invalid option list")
	ErrInvalidBool            = errors.New("invalid bool")
	ErrUnknownField           = errors.New("unknown custom field")
	ErrCorruptStoredValue     = errors.New("corrupt stored value")
	ErrIncompatibleDefinition = errors.New("incompatible field definition")
	ErrInvalidDefinition      = errors.New("invalid field definition")
)

// ValidationError is returned by every codec, compatibility and resolver
// operation. Message is safe to show to end users.
type ValidationError struct {
	Kind    error
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func newError(kind error, key, msg string) *ValidationError {
	return &ValidationError{Kind: kind, Key: key, Message: msg}
}

func requiredError(key string) *ValidationError {
	return newError(ErrRequiredFieldMissing, key, fmt.Sprintf("Field '%s' is required", key))
}

func corruptError(key string, stored string) *ValidationError {
	return newError(ErrCorruptStoredValue, key, fmt.Sprintf("Stored value %q for field '%s' cannot be decoded", stored, key))
}

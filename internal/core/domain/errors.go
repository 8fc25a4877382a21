package domain

import (
	"errors"
	"fmt"
)

// Domain error kinds. Handlers map these to HTTP statuses and a uniform
// failure envelope; anything that is none of these is treated as an
// infrastructure failure and surfaced as a generic error.

// ValidationError signals bad or missing input: zero quantities, amounts
// over stock or per-order limits, an empty cart at checkout.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError signals an unknown product, order, cart entry or message.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

func NotFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// AuthorizationError signals that the requesting client does not own the
// referenced resource.
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }

func Unauthorized(msg string) error {
	return &AuthorizationError{Msg: msg}
}

func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

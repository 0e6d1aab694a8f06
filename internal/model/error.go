package model

import (
	"errors"
	"fmt"
)

var ErrorInvalidUsernameOrPassword = errors.New("invalid username or password")
var ErrorUserNotFound = errors.New("user not found")
var ErrorDuplicateKey = errors.New("duplicate key")
var ErrorNotPending = errors.New("no pending friend request")
var ErrorEdgeNotFound = errors.New("friend edge not found")

// ValidationError carries a user-visible message about bad input. It is
// always raised before any mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

package services

import (
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
	// ErrSessionInvalid means the session refers to a user that no longer exists.
	ErrSessionInvalid  = errors.New("session is no longer valid")
	ErrChatDisabled    = errors.New("chatbot is not configured")
	ErrStorageDisabled = errors.New("image storage is not configured")
)

// ValidationError reports bad client input. Message is safe to show to the
// caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ParseID parses a hex object id coming from a path or body.
func ParseID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, invalid("invalid id")
	}
	return id, nil
}

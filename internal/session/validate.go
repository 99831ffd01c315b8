package session

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Validation limits.
const (
	MaxUsernameLength = 50
	MaxRoomNameLength = 100
	MaxMessageLength  = 5000
)

// ErrInvalidInput matches every validation error below via errors.Is.
var ErrInvalidInput = errors.New("invalid input")

type inputError string

func (e inputError) Error() string        { return string(e) }
func (e inputError) Is(target error) bool { return target == ErrInvalidInput }

// Validation errors.
var (
	ErrUsernameEmpty   error = inputError("username cannot be empty")
	ErrUsernameTooLong error = inputError("username exceeds maximum length")
	ErrUsernameInvalid error = inputError("username contains invalid characters")
	ErrRoomNameEmpty   error = inputError("room name cannot be empty")
	ErrRoomNameTooLong error = inputError("room name exceeds maximum length")
	ErrRoomNameInvalid error = inputError("room name contains invalid characters")
	ErrMessageEmpty    error = inputError("message cannot be empty")
	ErrMessageTooLong  error = inputError("message exceeds maximum length")
	ErrMessageInvalid  error = inputError("message contains invalid characters")
)

// ValidateUsername validates a display name.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if !utf8.ValidString(username) {
		return ErrUsernameInvalid
	}
	return nil
}

// ValidateRoomName validates a room name.
func ValidateRoomName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLength {
		return ErrRoomNameTooLong
	}
	if !utf8.ValidString(name) {
		return ErrRoomNameInvalid
	}
	return nil
}

// ValidateMessage validates a message body.
func ValidateMessage(body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrMessageEmpty
	}
	if len(body) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if !utf8.ValidString(body) {
		return ErrMessageInvalid
	}
	return nil
}

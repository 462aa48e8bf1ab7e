package core

import (
	"errors"
	"fmt"
)

// Class groups domain errors by how callers should report them.
type Class int

const (
	ClassValidation Class = iota
	ClassAuth
	ClassNotFound
	ClassConflict
	ClassCapacity
	ClassBackend
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassAuth:
		return "auth"
	case ClassNotFound:
		return "not_found"
	case ClassConflict:
		return "conflict"
	case ClassCapacity:
		return "capacity"
	case ClassBackend:
		return "backend"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Error codes for domain errors.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeInvalidPin         = "invalid_pin"
	ErrCodeNicknameTaken      = "nickname_taken"
	ErrCodeAlreadyInRoom      = "already_in_room"
	ErrCodeNoSession          = "no_session"
	ErrCodeEmptyMessage       = "empty_message"
	ErrCodeMessageTooLong     = "message_too_long"
	ErrCodeRoomNotMultimedia  = "room_not_multimedia"
	ErrCodeInvalidFile        = "invalid_file"
	ErrCodeRoomNotFound       = "room_not_found"
	ErrCodeBackendUnavailable = "backend_unavailable"
)

var (
	ErrBadRequest        = newError(ClassValidation, ErrCodeBadRequest, "bad request")
	ErrInvalidPin        = newError(ClassNotFound, ErrCodeInvalidPin, "PIN de sala incorrecto.")
	ErrNicknameTaken     = newError(ClassConflict, ErrCodeNicknameTaken, "Ese nickname ya está en uso en esta sala.")
	ErrAlreadyInRoom     = newError(ClassConflict, ErrCodeAlreadyInRoom, "Ya estás conectado a una sala.")
	ErrNoSession         = newError(ClassAuth, ErrCodeNoSession, "no active session")
	ErrEmptyMessage      = newError(ClassValidation, ErrCodeEmptyMessage, "message is empty")
	ErrMessageTooLong    = newError(ClassCapacity, ErrCodeMessageTooLong, "message is too long")
	ErrRoomNotMultimedia = newError(ClassConflict, ErrCodeRoomNotMultimedia, "room does not accept files")
	ErrInvalidFile       = newError(ClassValidation, ErrCodeInvalidFile, "invalid file reference")
	ErrRoomNotFound      = newError(ClassNotFound, ErrCodeRoomNotFound, "room not found")
)

// Error wraps a class, a code and a human-readable message.
// Two errors match under errors.Is when their codes are equal.
type Error struct {
	Class   Class
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(class Class, code, msg string) *Error {
	return &Error{Class: class, Code: code, Message: msg}
}

// Validation builds a validation error with a custom message.
func Validation(msg string) *Error {
	return newError(ClassValidation, ErrCodeBadRequest, msg)
}

// Backend wraps a repository or blob store failure.
func Backend(err error) *Error {
	return &Error{Class: ClassBackend, Code: ErrCodeBackendUnavailable, Message: "backend unavailable", Err: err}
}

// AsError converts err into a domain error. Unknown errors are treated as backend failures.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Backend(err)
}

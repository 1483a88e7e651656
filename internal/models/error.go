package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
	ErrUnavailable    = errors.New("service unavailable")

	// Account state errors
	ErrAccountDisabled  = errors.New("account is disabled")
	ErrEmailNotVerified = errors.New("email address not verified")
	ErrAccountLocked    = errors.New("account is disabled after consecutive failures")
)

// ErrorKind classifies an AppError and decides its HTTP status.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindAlreadyExists
	KindInvalidArgument
	KindNotAuthorized
	KindForbidden
	KindServer
	KindUnavailable
)

var kindSuffix = map[ErrorKind]string{
	KindNotFound:        "NotFound",
	KindAlreadyExists:   "AlreadyExists",
	KindInvalidArgument: "InvalidArgument",
	KindNotAuthorized:   "NotAuthorized",
	KindForbidden:       "Forbidden",
}

var kindSentinel = map[ErrorKind]error{
	KindNotFound:        ErrNotFound,
	KindAlreadyExists:   ErrConflict,
	KindInvalidArgument: ErrBadRequest,
	KindNotAuthorized:   ErrUnauthorized,
	KindForbidden:       ErrForbidden,
	KindServer:          ErrInternalServer,
	KindUnavailable:     ErrUnavailable,
}

// AppError is a classified domain error carrying a machine-readable code.
// Codes are the subject followed by the kind, e.g. "UserNotFound".
// Server errors keep their code verbatim, e.g. "DBSessionError".
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error // optional cause, never shown to clients
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is lets callers keep using errors.Is(err, models.ErrNotFound) and friends.
func (e *AppError) Is(target error) bool {
	return kindSentinel[e.Kind] == target
}

func newAppError(kind ErrorKind, subject, message string) *AppError {
	return &AppError{Kind: kind, Code: subject + kindSuffix[kind], Message: message}
}

func NewNotFoundError(subject, message string) *AppError {
	return newAppError(KindNotFound, subject, message)
}

func NewAlreadyExistsError(subject, message string) *AppError {
	return newAppError(KindAlreadyExists, subject, message)
}

func NewInvalidArgumentError(subject, message string) *AppError {
	return newAppError(KindInvalidArgument, subject, message)
}

func NewNotAuthorizedError(subject, message string) *AppError {
	return newAppError(KindNotAuthorized, subject, message)
}

func NewForbiddenError(subject, message string) *AppError {
	return newAppError(KindForbidden, subject, message)
}

// NewServerError wraps an internal failure. cause may be nil.
func NewServerError(code, message string, cause error) *AppError {
	return &AppError{Kind: KindServer, Code: code, Message: message, Err: cause}
}

// NewUnavailableError reports a dependency that could not be reached.
func NewUnavailableError(code, message string, cause error) *AppError {
	return &AppError{Kind: KindUnavailable, Code: code, Message: message, Err: cause}
}

// AsAppError extracts an AppError from the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when request input fails schema validation.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Fields[0].Field, e.Fields[0].Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrBadRequest }

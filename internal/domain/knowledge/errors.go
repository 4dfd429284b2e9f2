package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrorCode standardizes registry failure semantics across services.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "validation"
	CodeNotFound          ErrorCode = "not_found"
	CodeConflict          ErrorCode = "conflict"
	CodeInvalidTransition ErrorCode = "invalid_transition"
	CodeUnavailable       ErrorCode = "processor_unavailable"
	CodeProcessor         ErrorCode = "processor_failed"
	CodeRetryable         ErrorCode = "retryable"
	CodeStorage           ErrorCode = "storage"
	CodeInternal          ErrorCode = "internal"
)

// Error is the canonical registry error wrapper.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a registry error with explicit code + operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates an existing error with registry error semantics.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// IsCode checks whether err (or wrapped err) carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var regErr *Error
	if !errors.As(err, &regErr) {
		return false
	}
	return regErr.Code == code
}

// CodeOf extracts the registry error code when available.
func CodeOf(err error) ErrorCode {
	var regErr *Error
	if !errors.As(err, &regErr) {
		return ""
	}
	return regErr.Code
}

// MessageOf returns the human-readable message carried by a registry error,
// falling back to the plain error text.
func MessageOf(err error) string {
	var regErr *Error
	if errors.As(err, &regErr) && strings.TrimSpace(regErr.Message) != "" {
		return regErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// MapStorageError translates driver-level failures into registry error codes.
// Unique violations surface as CodeConflict so dedup races can re-read the
// winning row instead of failing the caller.
func MapStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var regErr *Error
	if errors.As(err, &regErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Wrap(CodeNotFound, op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Wrap(CodeConflict, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Wrap(CodeRetryable, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return Wrap(CodeConflict, op, err) // unique_violation
		case "23503":
			return Wrap(CodeValidation, op, err) // foreign_key_violation
		case "40001", "40P01", "55P03":
			return Wrap(CodeRetryable, op, err) // serialization/deadlock/lock_not_available
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "unique constraint"),
		strings.Contains(msg, "duplicate key"),
		strings.Contains(msg, "already exists"):
		return Wrap(CodeConflict, op, err)
	case strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "serialization"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "temporar"):
		return Wrap(CodeRetryable, op, err)
	default:
		return Wrap(CodeStorage, op, err)
	}
}

// IsDuplicate reports whether err carries a unique-constraint conflict.
func IsDuplicate(err error) bool {
	return IsCode(err, CodeConflict)
}

// Package apperr carries the structured error taxonomy shared by the
// scanner, applier and HTTP layer. Codes are string-based so they
// serialize naturally into JSON responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeNotFound      Code = "NOT_FOUND"
	CodeNotADirectory Code = "NOT_A_DIRECTORY"
	CodePermission    Code = "PERMISSION_DENIED"
	CodeConflict      Code = "CONFLICT"
	CodeBackupFailed  Code = "BACKUP_FAILED"
	CodeApplyFailed   Code = "APPLY_FAILED"
	CodeRestoreFailed Code = "RESTORE_FAILED"
	CodeNoBackup      Code = "NO_BACKUP"
)

// Error is a structured error value: a code, a message and the tree or
// filesystem path it concerns.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"error"`
	Path    string `json:"path,omitempty"`
	err     error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, err: err}
}

// WithPath returns a copy of the error annotated with a path.
func (e *Error) WithPath(path string) *Error {
	clone := *e
	clone.Path = path
	return &clone
}

// CodeOf extracts the code from an error chain; unknown errors map to
// APPLY_FAILED territory via an empty code.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HTTPStatus maps an error chain onto the response status the HTTP
// layer should answer with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidInput, CodeNotADirectory:
		return http.StatusBadRequest
	case CodeNotFound, CodeNoBackup:
		return http.StatusNotFound
	case CodePermission:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

package playout

import (
	"errors"
	"fmt"
)

// ErrIntegrity marks a broken invariant in the cached documents. It signals a
// bug rather than an operator mistake and is never retried.
var ErrIntegrity = errors.New("playout: integrity violation")

// Code is a stable machine-readable user error code.
type Code string

const (
	CodeRundownAlreadyActive      Code = "RundownAlreadyActive"
	CodeRundownAlreadyActiveNames Code = "RundownAlreadyActiveNames"
	CodeRundownResetWhileActive   Code = "RundownResetWhileActive"
	CodeInactiveRundown           Code = "InactiveRundown"
	CodeTakeCloseToAutonext       Code = "TakeCloseToAutonext"
	CodeTakeFromIncorrectPart     Code = "TakeFromIncorrectPart"
	CodeTakeNoNextPart            Code = "TakeNoNextPart"
	CodeTakeRateLimit             Code = "TakeRateLimit"
	CodePartNotFound              Code = "PartNotFound"
	CodePartNotPlayable           Code = "PartNotPlayable"
	CodeSegmentNotFound           Code = "SegmentNotFound"
	CodeSegmentNoPlayableParts    Code = "SegmentNoPlayableParts"
	CodeMoveNextPartNoTarget      Code = "MoveNextPartNoTarget"
	CodePlaylistNotFound          Code = "PlaylistNotFound"
)

// UserError is a reportable, non-fatal rejection of an operation.
type UserError struct {
	Code    Code
	Message string
	Args    map[string]any
}

func (e *UserError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches another *UserError with the same code.
func (e *UserError) Is(target error) bool {
	t, ok := target.(*UserError)
	return ok && t.Code == e.Code
}

func userError(code Code, args map[string]any, format string, a ...any) *UserError {
	return &UserError{Code: code, Message: fmt.Sprintf(format, a...), Args: args}
}

// NewUserError builds a user error for callers outside the engine.
func NewUserError(code Code, format string, a ...any) *UserError {
	return userError(code, nil, format, a...)
}

// IsUserError reports whether err is or wraps a *UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

// ErrorCode returns the user error code carried by err, or "".
func ErrorCode(err error) Code {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Code
	}
	return ""
}

func integrityError(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrIntegrity, fmt.Sprintf(format, a...))
}

package core

import "fmt"

// Code classifies an Error for transport-layer mapping (HTTP status,
// retry eligibility) without callers needing to string-match messages.
type Code string

const (
	CodeNotFound   Code = "not_found"
	CodeConflict   Code = "conflict"
	CodeValidation Code = "validation"
	CodePermission Code = "permission"
	CodeProvider   Code = "provider"
	CodeTimeout    Code = "timeout"
	CodeStorage    Code = "storage"
	CodeCancelled  Code = "cancelled"
)

// Error is the runtime's structured error type. Many fallible operations
// return an *Error so callers can type-switch on Code instead of message
// text; some, for example in agentsub/ and tools/, return plain wrapped
// errors instead.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps Code to the status a transport (such as cmd/worldd's
// chi router) should return.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeNotFound:
		return 404
	case CodeConflict:
		return 409
	case CodeValidation:
		return 400
	case CodePermission:
		return 403
	case CodeTimeout:
		return 504
	case CodeCancelled:
		return 499
	case CodeProvider, CodeStorage:
		return 502
	default:
		return 500
	}
}

func newErr(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapErr(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFoundf(format string, args ...any) *Error   { return newErr(CodeNotFound, format, args...) }
func Conflictf(format string, args ...any) *Error   { return newErr(CodeConflict, format, args...) }
func Validationf(format string, args ...any) *Error { return newErr(CodeValidation, format, args...) }
func Permissionf(format string, args ...any) *Error { return newErr(CodePermission, format, args...) }
func Timeoutf(format string, args ...any) *Error    { return newErr(CodeTimeout, format, args...) }
func Cancelledf(format string, args ...any) *Error  { return newErr(CodeCancelled, format, args...) }

func ProviderError(err error, format string, args ...any) *Error {
	return wrapErr(CodeProvider, err, format, args...)
}

func StorageError(err error, format string, args ...any) *Error {
	return wrapErr(CodeStorage, err, format, args...)
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}

package dynproxy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/broady/dynproxy/typesys"
)

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	CodeInvalidConfiguration  ErrorCode = "invalid_configuration"
	CodeUnsupportedMember     ErrorCode = "unsupported_member"
	CodeNoMatchingConstructor ErrorCode = "no_matching_constructor"
	CodeInvalidCast           ErrorCode = "invalid_cast"
	CodeNotImplemented        ErrorCode = "not_implemented"
	CodeMemberNotFound        ErrorCode = "member_not_found"
	CodeInvalidArgument       ErrorCode = "invalid_argument"
	CodeCanceled              ErrorCode = "canceled"
	CodeInternal              ErrorCode = "internal"
)

// Sentinels for use with errors.Is. Any *Error with the same code matches.
var (
	ErrInvalidConfiguration  = NewError(CodeInvalidConfiguration, "invalid configuration")
	ErrUnsupportedMember     = NewError(CodeUnsupportedMember, "unsupported member")
	ErrNoMatchingConstructor = NewError(CodeNoMatchingConstructor, "no matching constructor")
	ErrInvalidCast           = NewError(CodeInvalidCast, "invalid cast")
	ErrNotImplemented        = NewError(CodeNotImplemented, "not implemented")
	ErrMemberNotFound        = NewError(CodeMemberNotFound, "member not found")
	ErrInvalidArgument       = NewError(CodeInvalidArgument, "invalid argument")
)

// Error is the error envelope returned by proxy generation and dispatch.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetail returns a new Error with the key-value pair added to details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
	}
}

// WithDetails returns a new Error with the provided map merged into details.
// For multiple details, this is more efficient than chaining WithDetail calls.
func (e *Error) WithDetails(details map[string]any) *Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: merged,
	}
}

// AsError maps err to an *Error. Errors that already are (or wrap) an *Error
// are returned unchanged; registration and validation failures become
// invalid_configuration; anything else is internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(CodeCanceled, err.Error())
	}

	if errors.Is(err, typesys.ErrInvalidType) || errors.Is(err, typesys.ErrDuplicateType) || errors.Is(err, typesys.ErrNilType) {
		return NewError(CodeInvalidConfiguration, err.Error())
	}

	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		details := make(map[string]any)
		messages := make([]string, 0, len(valErrs))
		for _, ve := range valErrs {
			msg := formatValidationError(ve)
			details[ve.Field()] = msg
			messages = append(messages, ve.Field()+": "+msg)
		}
		return &Error{
			Code:    CodeInvalidConfiguration,
			Message: strings.Join(messages, "; "),
			Details: details,
		}
	}

	// errors.Join: the first error decides the code, all messages are kept.
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		errs := u.Unwrap()
		if len(errs) > 0 {
			first := AsError(errs[0])
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			return &Error{
				Code:    first.Code,
				Message: strings.Join(msgs, "; "),
				Details: first.Details,
			}
		}
	}

	return NewError(CodeInternal, err.Error())
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", ve.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", ve.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", ve.Param())
	case "alphanum":
		return "must contain only letters and digits"
	case "semver":
		return "must be a semantic version"
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}

package graphql

import "errors"

// Machine-checkable error codes carried in the "code" extension of a
// response error. Clients branch on these rather than on message text.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeNotFound        = "NOT_FOUND"
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
)

// Error is a resolver error with an associated response code.
type Error struct {
	Message string
	Code    string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrUnauthenticated reports a request that requires a logged-in user.
func ErrUnauthenticated() *Error {
	return &Error{Message: "not authenticated", Code: CodeUnauthenticated}
}

// ErrNotFound reports a lookup of an entity that does not exist.
func ErrNotFound(message string) *Error {
	return &Error{Message: message, Code: CodeNotFound}
}

// ErrBadUserInput reports invalid caller-supplied input. The cause, when
// present, is retained for unwrapping but not exposed to clients beyond
// the message.
func ErrBadUserInput(message string, cause error) *Error {
	return &Error{Message: message, Code: CodeBadUserInput, Err: cause}
}

// toResponseError converts a resolver error into the wire representation.
// Errors without a code classify as internal, with the message unchanged.
func toResponseError(err error, path []interface{}) ResponseError {
	var gqlErr *Error
	if !errors.As(err, &gqlErr) {
		gqlErr = &Error{Message: err.Error(), Code: CodeInternal, Err: err}
	}

	code := gqlErr.Code
	if code == "" {
		code = CodeInternal
	}

	return ResponseError{
		Message:    gqlErr.Message,
		Path:       path,
		Extensions: map[string]interface{}{"code": code},
	}
}

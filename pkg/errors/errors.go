// myxl-gateway/pkg/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error classes surfaced at the HTTP boundary.
const (
	CodePrecondition = "PRECONDITION"
	CodeInvalidInput = "INVALID_INPUT"
	CodeBadRequest   = "BAD_REQUEST"
	CodeServerError  = "SERVER_ERROR"
	CodeUnhandled    = "UNHANDLED"
)

type E struct {
	Code    string
	Message string
	Err     error
}

func (e E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e E) Unwrap() error { return e.Err }

func Wrap(code, msg string, err error) error {
	return E{Code: code, Message: msg, Err: err}
}

func New(code, msg string) error {
	return E{Code: code, Message: msg}
}

func Precondition(msg string) error { return New(CodePrecondition, msg) }
func InvalidInput(msg string) error { return New(CodeInvalidInput, msg) }
func BadRequest(msg string) error   { return New(CodeBadRequest, msg) }
func ServerError(msg string) error  { return New(CodeServerError, msg) }

// Unhandled marks a collaborator failure that this layer does not classify.
func Unhandled(step string, err error) error {
	return Wrap(CodeUnhandled, step, err)
}

// As extracts the classified error, if any.
func As(err error) (E, bool) {
	var e E
	if stderrors.As(err, &e) {
		return e, true
	}
	return E{}, false
}

// Status maps an error class to its HTTP status. Unclassified errors are 500.
func Status(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case CodePrecondition, CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Detail is the caller-facing message. Unhandled failures never leak
// collaborator internals.
func Detail(err error) string {
	e, ok := As(err)
	if !ok || e.Code == CodeUnhandled {
		return http.StatusText(http.StatusInternalServerError)
	}
	return e.Message
}

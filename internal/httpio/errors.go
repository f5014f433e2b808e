// Package httpio holds the framework-agnostic request helpers shared by every
// route: bounded body readers, the JSON responder, URL/query parsing and the
// validation error type.
package httpio

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusClientClosedRequest is the non-standard status used when the client
// went away before the request was read.
const StatusClientClosedRequest = 499

// Validation error codes.
const (
	CodeInvalidRequest  = "InvalidRequest"
	CodeInvalidJSON     = "InvalidJson"
	CodePayloadTooLarge = "PayloadTooLarge"
)

// ErrRequestAborted is returned by the body readers when the client aborts
// the request mid-body.
var ErrRequestAborted = errors.New("request aborted by client")

// ValidationError is a client-caused input failure. It is only created at
// validation sites, never for upstream or pool failures.
type ValidationError struct {
	Code    string
	Status  int
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// InvalidRequest builds a 400 InvalidRequest validation error.
func InvalidRequest(format string, args ...any) *ValidationError {
	return &ValidationError{Code: CodeInvalidRequest, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// InvalidJSON builds a 400 InvalidJson validation error.
func InvalidJSON(cause error) *ValidationError {
	return &ValidationError{Code: CodeInvalidJSON, Status: http.StatusBadRequest, Message: "request body is not valid JSON: " + cause.Error()}
}

// PayloadTooLarge builds a 413 validation error for a body over limit bytes.
func PayloadTooLarge(limit int64) *ValidationError {
	return &ValidationError{
		Code:    CodePayloadTooLarge,
		Status:  http.StatusRequestEntityTooLarge,
		Message: fmt.Sprintf("request body exceeds the %d byte limit", limit),
	}
}

// Package apierror converts any error that reaches a route boundary into the
// stable client-facing payload {code, message, status, retryable}.
//
// Classification order (first match wins):
//
//  1. client abort                    → RequestAborted
//  2. *httpio.ValidationError         → its own code and status
//  3. unsupported feature sentinel and known upstream/pool phrases
//     → specific provider codes
//  4. numeric status (Status/StatusCode) → status-derived provider codes
//  5. anything else                   → ProviderUnknownError
package apierror

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ferro-labs/genai-gateway/internal/httpio"
	"github.com/ferro-labs/genai-gateway/internal/keypool"
	"github.com/ferro-labs/genai-gateway/providers"
)

// Error codes exposed to clients.
const (
	CodeRequestAborted                    = "RequestAborted"
	CodeMethodNotAllowed                  = "MethodNotAllowed"
	CodeNotFound                          = "NotFound"
	CodeRateLimited                       = "RateLimited"
	CodeProviderFeatureNotSupported       = "ProviderFeatureNotSupported"
	CodeProviderKeyNotConfigured          = "ProviderKeyNotConfigured"
	CodeProviderKeyTemporarilyUnavailable = "ProviderKeyTemporarilyUnavailable"
	CodeProviderInvalidRequest            = "ProviderInvalidRequest"
	CodeProviderAuthFailed                = "ProviderAuthFailed"
	CodeProviderForbidden                 = "ProviderForbidden"
	CodeProviderNotFound                  = "ProviderNotFound"
	CodeProviderTimeout                   = "ProviderTimeout"
	CodeProviderRateLimited               = "ProviderRateLimited"
	CodeProviderUpstreamError             = "ProviderUpstreamError"
	CodeProviderUnknownError              = "ProviderUnknownError"
)

// Payload is the error body sent to clients.
type Payload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Retryable bool   `json:"retryable"`

	// RetryAfter, when positive, is sent as the Retry-After header.
	RetryAfter time.Duration `json:"-"`
}

type statusError interface{ Status() int }

type statusCodeError interface{ StatusCode() int }

type phrase struct {
	match     []string
	code      string
	status    int
	retryable bool
}

// phrases are matched case-insensitively against the error message before
// any status-based mapping.
var phrases = []phrase{
	{
		match:  []string{"only supported in the gemini developer", "feature not supported for this"},
		code:   CodeProviderFeatureNotSupported,
		status: http.StatusBadRequest,
	},
	{
		match:  []string{"no provider api keys configured"},
		code:   CodeProviderKeyNotConfigured,
		status: http.StatusServiceUnavailable,
	},
	{
		match:     []string{"no provider api keys available"},
		code:      CodeProviderKeyTemporarilyUnavailable,
		status:    http.StatusServiceUnavailable,
		retryable: true,
	},
}

// Map classifies err. It is a pure function of err: the same error shape
// always yields the same code, status and retryability.
func Map(err error) Payload {
	if err == nil {
		return Payload{Code: CodeProviderUnknownError, Message: "unknown error", Status: http.StatusInternalServerError, Retryable: true}
	}
	msg := err.Error()

	if errors.Is(err, httpio.ErrRequestAborted) || errors.Is(err, context.Canceled) {
		return Payload{Code: CodeRequestAborted, Message: msg, Status: httpio.StatusClientClosedRequest}
	}

	var ve *httpio.ValidationError
	if errors.As(err, &ve) {
		return Payload{Code: ve.Code, Message: ve.Message, Status: ve.Status}
	}

	if errors.Is(err, providers.ErrFeatureNotSupported) {
		return Payload{Code: CodeProviderFeatureNotSupported, Message: msg, Status: http.StatusBadRequest}
	}

	status := statusOf(err)

	lower := strings.ToLower(msg)
	for _, p := range phrases {
		for _, m := range p.match {
			if strings.Contains(lower, m) {
				out := Payload{Code: p.code, Message: msg, Status: p.status, Retryable: p.retryable}
				var nka *keypool.NoKeysAvailableError
				if errors.As(err, &nka) {
					out.RetryAfter = nka.RetryAfter
				}
				return out
			}
		}
	}

	if code, retryable, ok := codeForStatus(status); ok {
		return Payload{Code: code, Message: msg, Status: status, Retryable: retryable}
	}
	return Payload{
		Code:      CodeProviderUnknownError,
		Message:   msg,
		Status:    status,
		Retryable: status >= 500 || status == http.StatusTooManyRequests,
	}
}

// statusOf extracts an HTTP status carried by err, defaulting to 500.
func statusOf(err error) int {
	var se statusError
	if errors.As(err, &se) && se.Status() > 0 {
		return se.Status()
	}
	var sce statusCodeError
	if errors.As(err, &sce) && sce.StatusCode() > 0 {
		return sce.StatusCode()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func codeForStatus(status int) (code string, retryable bool, ok bool) {
	switch {
	case status == http.StatusBadRequest:
		return CodeProviderInvalidRequest, false, true
	case status == http.StatusUnauthorized:
		return CodeProviderAuthFailed, false, true
	case status == http.StatusForbidden:
		return CodeProviderForbidden, false, true
	case status == http.StatusNotFound:
		return CodeProviderNotFound, false, true
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return CodeProviderTimeout, true, true
	case status == http.StatusTooManyRequests:
		return CodeProviderRateLimited, true, true
	case status >= 500 && status <= 599:
		return CodeProviderUpstreamError, true, true
	}
	return "", false, false
}

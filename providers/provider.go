// Package providers defines the upstream capability the gateway calls into and
// a REST implementation for the Google generative-AI APIs.
//
// A Client is bound to exactly one API key. The gateway builds a fresh Client
// for every call from the key it acquired, so key health bookkeeping stays
// outside this package.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Routing modes select the upstream endpoint family.
const (
	// RoutingGeminiAPI targets the Gemini Developer API directly.
	RoutingGeminiAPI = "gemini-api"
	// RoutingVertexAI targets Vertex AI (managed Google Cloud infrastructure).
	RoutingVertexAI = "vertex-ai"
)

// SSEDone is the sentinel value that marks the end of a server-sent event stream.
const SSEDone = "[DONE]"

// ErrFeatureNotSupported is returned for operations the selected routing mode
// cannot serve, e.g. the Files API under Vertex AI.
var ErrFeatureNotSupported = errors.New("this feature is not supported in the current routing mode")

// ClientConfig carries everything needed to build a Client for one key.
type ClientConfig struct {
	APIKey      string
	RoutingMode string
	// BaseURL overrides the default endpoint for the routing mode.
	BaseURL string
	// APIVersion overrides the default API version ("v1beta" / "v1").
	APIVersion string
	// Project and Location scope Vertex AI calls; both optional.
	Project  string
	Location string
	// HTTPClient defaults to a shared client without timeout.
	HTTPClient *http.Client
}

// Client is the upstream capability: execute an operation with one
// credential, fail or succeed.
type Client interface {
	UploadFile(ctx context.Context, upload FileUpload) (*File, error)
	GetFile(ctx context.Context, name string) (*File, error)
	DeleteFile(ctx context.Context, name string) error
	GenerateContent(ctx context.Context, model string, body []byte) (json.RawMessage, error)
	StreamGenerateContent(ctx context.Context, model string, body []byte) (<-chan StreamChunk, error)
}

// FileUpload is a binary payload destined for the provider's file store.
type FileUpload struct {
	DisplayName string
	MIMEType    string
	Data        []byte
}

// File is the provider's file descriptor.
type File struct {
	Name           string     `json:"name"`
	DisplayName    string     `json:"displayName,omitempty"`
	MIMEType       string     `json:"mimeType,omitempty"`
	SizeBytes      string     `json:"sizeBytes,omitempty"`
	CreateTime     string     `json:"createTime,omitempty"`
	UpdateTime     string     `json:"updateTime,omitempty"`
	ExpirationTime string     `json:"expirationTime,omitempty"`
	SHA256Hash     string     `json:"sha256Hash,omitempty"`
	URI            string     `json:"uri,omitempty"`
	State          string     `json:"state,omitempty"`
	Source         string     `json:"source,omitempty"`
	Error          *FileError `json:"error,omitempty"`
}

// FileError describes why file processing failed upstream.
type FileError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// StreamChunk is one server-sent event payload relayed from the provider.
// Exactly one of Data and Error is set.
type StreamChunk struct {
	Data  json.RawMessage
	Error error
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	HTTPStatus int
	// Code is the provider's canonical status string, e.g. "NOT_FOUND".
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider API error (%d %s): %s", e.HTTPStatus, e.Code, e.Message)
	}
	return fmt.Sprintf("provider API error (%d): %s", e.HTTPStatus, e.Message)
}

// StatusCode returns the upstream HTTP status.
func (e *APIError) StatusCode() int { return e.HTTPStatus }

// IsNotFound reports whether err means the requested resource does not exist
// upstream. Structured errors are checked first; the message heuristic only
// applies to errors that carry no status.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatus == http.StatusNotFound || apiErr.Code == "NOT_FOUND"
	}
	msg := err.Error()
	return strings.Contains(msg, "NOT_FOUND") || notFoundStatus.MatchString(msg)
}

// notFoundStatus matches a standalone 404 status, not one embedded in a
// resource name or URL path such as "files/abc404".
var notFoundStatus = regexp.MustCompile(`(^|[\s(:=])404([\s):,.]|$)`)

package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultGeminiBaseURL    = "https://generativelanguage.googleapis.com"
	defaultGeminiAPIVersion = "v1beta"
	defaultVertexBaseURL    = "https://aiplatform.googleapis.com"
	defaultVertexAPIVersion = "v1"

	// maxSSELineBytes bounds a single streamed event.
	maxSSELineBytes = 4 << 20
)

var defaultHTTPClient = &http.Client{}

// GeminiClient implements Client against the Gemini Developer API or Vertex AI.
type GeminiClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	apiVersion string
	vertex     bool
	project    string
	location   string
}

// NewGemini creates a client for a single API key.
func NewGemini(cfg ClientConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini client: api key is required")
	}

	c := &GeminiClient{
		httpClient: cfg.HTTPClient,
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		apiVersion: cfg.APIVersion,
		project:    cfg.Project,
		location:   cfg.Location,
	}
	if c.httpClient == nil {
		c.httpClient = defaultHTTPClient
	}

	switch cfg.RoutingMode {
	case RoutingGeminiAPI, "":
		if c.baseURL == "" {
			c.baseURL = defaultGeminiBaseURL
		}
		if c.apiVersion == "" {
			c.apiVersion = defaultGeminiAPIVersion
		}
	case RoutingVertexAI:
		c.vertex = true
		if c.baseURL == "" {
			c.baseURL = defaultVertexBaseURL
			if c.location != "" && c.location != "global" {
				c.baseURL = "https://" + c.location + "-aiplatform.googleapis.com"
			}
		}
		if c.apiVersion == "" {
			c.apiVersion = defaultVertexAPIVersion
		}
	default:
		return nil, fmt.Errorf("gemini client: unknown routing mode %q", cfg.RoutingMode)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	return c, nil
}

// BaseURL returns the resolved endpoint root.
func (c *GeminiClient) BaseURL() string { return c.baseURL }

// APIVersion returns the resolved API version.
func (c *GeminiClient) APIVersion() string { return c.apiVersion }

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// newAPIError builds an APIError from a non-2xx response body.
func newAPIError(status int, body []byte) *APIError {
	var errResp geminiErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		return &APIError{HTTPStatus: status, Code: errResp.Error.Status, Message: errResp.Error.Message}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{HTTPStatus: status, Message: msg}
}

// newRequest builds an authenticated request. The key travels in a header so
// it never appears in URLs that transport errors may echo.
func (c *GeminiClient) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	return req, nil
}

// do sends req and returns the response body of a 2xx reply.
func (c *GeminiClient) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, newAPIError(resp.StatusCode, body)
	}
	return resp, body, nil
}

func fileResourceName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if !strings.HasPrefix(name, "files/") {
		name = "files/" + name
	}
	return name
}

// UploadFile stores data in the Files API using the resumable upload protocol:
// a start request that returns an upload URL, then a single upload+finalize.
func (c *GeminiClient) UploadFile(ctx context.Context, upload FileUpload) (*File, error) {
	if c.vertex {
		return nil, ErrFeatureNotSupported
	}

	meta, err := json.Marshal(map[string]any{
		"file": map[string]string{"displayName": upload.DisplayName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal file metadata: %w", err)
	}

	startURL := fmt.Sprintf("%s/upload/%s/files", c.baseURL, c.apiVersion)
	startReq, err := c.newRequest(ctx, http.MethodPost, startURL, bytes.NewReader(meta))
	if err != nil {
		return nil, err
	}
	startReq.Header.Set("Content-Type", "application/json")
	startReq.Header.Set("X-Goog-Upload-Protocol", "resumable")
	startReq.Header.Set("X-Goog-Upload-Command", "start")
	startReq.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.Itoa(len(upload.Data)))
	startReq.Header.Set("X-Goog-Upload-Header-Content-Type", upload.MIMEType)

	startResp, _, err := c.do(startReq)
	if err != nil {
		return nil, err
	}
	uploadURL := startResp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return nil, &APIError{HTTPStatus: http.StatusBadGateway, Message: "upload session did not return an upload URL"}
	}

	dataReq, err := c.newRequest(ctx, http.MethodPost, uploadURL, bytes.NewReader(upload.Data))
	if err != nil {
		return nil, err
	}
	dataReq.ContentLength = int64(len(upload.Data))
	dataReq.Header.Set("X-Goog-Upload-Command", "upload, finalize")
	dataReq.Header.Set("X-Goog-Upload-Offset", "0")

	_, body, err := c.do(dataReq)
	if err != nil {
		return nil, err
	}
	var out struct {
		File *File `json:"file"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal upload response: %w", err)
	}
	if out.File == nil {
		return nil, &APIError{HTTPStatus: http.StatusBadGateway, Message: "upload response did not contain a file"}
	}
	return out.File, nil
}

// GetFile fetches file metadata. name may be "files/abc" or "abc".
func (c *GeminiClient) GetFile(ctx context.Context, name string) (*File, error) {
	if c.vertex {
		return nil, ErrFeatureNotSupported
	}
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("%s/%s/%s", c.baseURL, c.apiVersion, fileResourceName(name)), nil)
	if err != nil {
		return nil, err
	}
	_, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file: %w", err)
	}
	return &f, nil
}

// DeleteFile removes a file from the provider's store.
func (c *GeminiClient) DeleteFile(ctx context.Context, name string) error {
	if c.vertex {
		return ErrFeatureNotSupported
	}
	req, err := c.newRequest(ctx, http.MethodDelete, fmt.Sprintf("%s/%s/%s", c.baseURL, c.apiVersion, fileResourceName(name)), nil)
	if err != nil {
		return err
	}
	_, _, err = c.do(req)
	return err
}

// modelURL returns the method URL for a model, e.g. ".../models/gemini-2.0-flash:generateContent".
func (c *GeminiClient) modelURL(model, method string) string {
	model = strings.TrimPrefix(model, "models/")
	model = url.PathEscape(model)
	if !c.vertex {
		return fmt.Sprintf("%s/%s/models/%s:%s", c.baseURL, c.apiVersion, model, method)
	}
	if c.project != "" && c.location != "" {
		return fmt.Sprintf("%s/%s/projects/%s/locations/%s/publishers/google/models/%s:%s",
			c.baseURL, c.apiVersion, c.project, c.location, model, method)
	}
	return fmt.Sprintf("%s/%s/publishers/google/models/%s:%s", c.baseURL, c.apiVersion, model, method)
}

// GenerateContent sends a generateContent request and returns the raw response.
func (c *GeminiClient) GenerateContent(ctx context.Context, model string, body []byte) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.modelURL(model, "generateContent"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	_, respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("failed to unmarshal response: invalid JSON")
	}
	return json.RawMessage(respBody), nil
}

// StreamGenerateContent opens a streamGenerateContent SSE stream. Non-2xx
// replies fail before the channel is returned; later read errors arrive as a
// final chunk with Error set.
func (c *GeminiClient) StreamGenerateContent(ctx context.Context, model string, body []byte) (<-chan StreamChunk, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.modelURL(model, "streamGenerateContent")+"?alt=sse", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		defer func() { _ = httpResp.Body.Close() }()
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, newAPIError(httpResp.StatusCode, respBody)
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer func() { _ = httpResp.Body.Close() }()

		scanner := bufio.NewScanner(httpResp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineBytes)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == SSEDone {
				continue
			}
			if !json.Valid([]byte(data)) {
				continue
			}
			select {
			case ch <- StreamChunk{Data: json.RawMessage(data)}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case ch <- StreamChunk{Error: err}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

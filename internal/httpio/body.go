package httpio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DefaultMaxBodyBytes applies when a reader is called with a non-positive limit.
const DefaultMaxBodyBytes int64 = 1 << 20

// ReadBody reads the whole request body, failing as soon as more than limit
// bytes arrive. On overflow the response is marked Connection: close so the
// server drops the connection instead of draining the rest of the upload.
// A client abort yields ErrRequestAborted.
func ReadBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	if r.ContentLength > limit {
		w.Header().Set("Connection", "close")
		return nil, PayloadTooLarge(limit)
	}

	body := http.MaxBytesReader(w, r.Body, limit)
	defer func() { _ = body.Close() }()

	var buf bytes.Buffer
	if r.ContentLength > 0 {
		buf.Grow(int(r.ContentLength))
	}
	if _, err := buf.ReadFrom(body); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			w.Header().Set("Connection", "close")
			return nil, PayloadTooLarge(limit)
		case isAbort(r, err):
			return nil, ErrRequestAborted
		default:
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func isAbort(r *http.Request, err error) bool {
	if r.Context().Err() != nil {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.Canceled)
}

// ReadJSON reads a bounded body and decodes it into v. An empty body is an
// InvalidRequest error; a malformed one is InvalidJson.
func ReadJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	body, err := ReadBody(w, r, limit)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return InvalidRequest("request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return InvalidJSON(err)
	}
	return nil
}

package httpio

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// ContentTypeJSON is the content type of every JSON response.
const ContentTypeJSON = "application/json; charset=utf-8"

// WriteJSON serialises payload and writes it with status in one shot. The
// payload is marshalled before any header is written, so a serialisation
// failure still produces a well-formed 500.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":{"code":"InternalError","message":"failed to encode response","status":500,"retryable":false}}`)
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

var baseURL = &url.URL{Scheme: "http", Host: "localhost", Path: "/"}

// RequestURL resolves the request's path and query against a fixed base, so
// handlers always get an absolute URL even for nil or partial request URLs.
func RequestURL(r *http.Request) *url.URL {
	u := *baseURL
	if r == nil || r.URL == nil {
		return &u
	}
	if r.URL.Path != "" {
		u.Path = r.URL.Path
		u.RawPath = r.URL.RawPath
	}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	u.RawQuery = r.URL.RawQuery
	return &u
}

// RequireQuery returns the trimmed value of a query parameter, or an
// InvalidRequest error when it is missing or blank.
func RequireQuery(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(RequestURL(r).Query().Get(name))
	if v == "" {
		return "", InvalidRequest("query parameter %q is required", name)
	}
	return v, nil
}

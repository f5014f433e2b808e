// Package api implements the gateway's HTTP routes. Every handler validates
// its input with httpio, runs provider work through upstream.Client and maps
// failures exactly once through apierror.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ferro-labs/genai-gateway/internal/apierror"
	"github.com/ferro-labs/genai-gateway/internal/httpio"
	"github.com/ferro-labs/genai-gateway/internal/metrics"
	"github.com/ferro-labs/genai-gateway/internal/upstream"
)

// DefaultMaxUploadBytes is the upload ceiling used when none is configured.
const DefaultMaxUploadBytes int64 = 64 << 20

// ServiceInfo identifies the running deployment in health output.
type ServiceInfo struct {
	Name        string
	Environment string
}

// Handlers holds dependencies for the API routes.
type Handlers struct {
	Upstream *upstream.Client
	Service  ServiceInfo

	// MaxUploadBytes bounds raw file uploads; MaxJSONBytes bounds JSON bodies.
	MaxUploadBytes int64
	MaxJSONBytes   int64

	Started time.Time
	// Now defaults to time.Now.
	Now func() time.Time
}

// Routes returns a chi.Router with all API endpoints, meant to be mounted
// at /api.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(instrument)
	r.MethodNotAllowed(methodNotAllowed(r))

	r.Post("/files/upload", h.uploadFile)
	r.Get("/files/metadata", h.fileMetadata)
	r.Delete("/files", h.deleteFile)

	r.Post("/models/generate", h.generate)
	r.Post("/models/stream", h.stream)

	r.Get("/health", h.health)
	return r
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handlers) maxUploadBytes() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

func (h *Handlers) maxJSONBytes() int64 {
	if h.MaxJSONBytes > 0 {
		return h.MaxJSONBytes
	}
	return httpio.DefaultMaxBodyBytes
}

// allowCandidates are the methods probed when building an Allow header.
var allowCandidates = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

// methodNotAllowed answers 405 with the methods routes actually accept on
// the path listed in Allow.
func methodNotAllowed(routes chi.Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePath != "" {
			path = rctx.RoutePath
		}
		var allowed []string
		for _, m := range allowCandidates {
			if routes.Match(chi.NewRouteContext(), m, path) {
				allowed = append(allowed, m)
			}
		}
		if len(allowed) > 0 {
			w.Header().Set("Allow", strings.Join(allowed, ", "))
		}
		apierror.WritePayload(w, r, apierror.Payload{
			Code:    apierror.CodeMethodNotAllowed,
			Message: "method " + r.Method + " is not allowed on " + r.URL.Path,
			Status:  http.StatusMethodNotAllowed,
		})
	}
}

// instrument records request count and latency per chi route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

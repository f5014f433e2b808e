package apierror

import (
	"math"
	"net/http"
	"strconv"

	"github.com/ferro-labs/genai-gateway/internal/httpio"
	"github.com/ferro-labs/genai-gateway/internal/logging"
	"github.com/ferro-labs/genai-gateway/internal/metrics"
)

// Write maps err once and writes it as {"error": payload}.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	WritePayload(w, r, Map(err))
}

// WritePayload writes an already-built payload, e.g. for 405 or 429 replies
// produced outside a handler's error path.
func WritePayload(w http.ResponseWriter, r *http.Request, p Payload) {
	log := logging.FromContext(r.Context())
	if p.Status >= 500 {
		log.Error("request failed", "code", p.Code, "status", p.Status, "retryable", p.Retryable, "error", p.Message)
	} else {
		log.Info("request rejected", "code", p.Code, "status", p.Status, "error", p.Message)
	}
	metrics.ErrorsTotal.WithLabelValues(p.Code).Inc()

	if p.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(p.RetryAfter.Seconds()))))
	}
	httpio.WriteJSON(w, p.Status, map[string]Payload{"error": p})
}

package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ferro-labs/genai-gateway/internal/apierror"
	"github.com/ferro-labs/genai-gateway/internal/httpio"
	"github.com/ferro-labs/genai-gateway/internal/logging"
	"github.com/ferro-labs/genai-gateway/internal/upstream"
	"github.com/ferro-labs/genai-gateway/providers"
)

//go:embed generate.schema.json
var generateSchemaJSON string

var generateSchema = jsonschema.MustCompileString("generate.schema.json", generateSchemaJSON)

// generateRequest is a validated generate body split into the target model
// and the payload forwarded upstream unchanged.
type generateRequest struct {
	Model string
	Body  []byte
}

func (h *Handlers) readGenerateRequest(w http.ResponseWriter, r *http.Request) (generateRequest, error) {
	var doc any
	if err := httpio.ReadJSON(w, r, h.maxJSONBytes(), &doc); err != nil {
		return generateRequest{}, err
	}
	if err := generateSchema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return generateRequest{}, httpio.InvalidRequest("invalid generate request: %s", leafMessage(verr))
		}
		return generateRequest{}, httpio.InvalidRequest("invalid generate request: %v", err)
	}

	obj := doc.(map[string]any)
	model := obj["model"].(string)
	delete(obj, "model")
	body, err := json.Marshal(obj)
	if err != nil {
		return generateRequest{}, fmt.Errorf("encode generate body: %w", err)
	}
	return generateRequest{Model: model, Body: body}, nil
}

// leafMessage returns the first innermost cause, which names the offending
// field instead of the schema root.
func leafMessage(verr *jsonschema.ValidationError) string {
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}
	if verr.InstanceLocation == "" {
		return verr.Message
	}
	return verr.InstanceLocation + ": " + verr.Message
}

// generate handles POST /models/generate and relays the provider response.
func (h *Handlers) generate(w http.ResponseWriter, r *http.Request) {
	req, err := h.readGenerateRequest(w, r)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	resp, err := upstream.Run(r.Context(), h.Upstream, func(ctx context.Context, call upstream.Call) (json.RawMessage, error) {
		return call.Provider.GenerateContent(ctx, req.Model, req.Body)
	})
	if err != nil {
		apierror.Write(w, r, err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, map[string]json.RawMessage{"response": resp})
}

// stream handles POST /models/stream and relays provider chunks as SSE.
// Failures before the stream opens use the normal JSON envelope; later ones
// are sent as a final error event.
func (h *Handlers) stream(w http.ResponseWriter, r *http.Request) {
	req, err := h.readGenerateRequest(w, r)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	ch, err := upstream.Run(r.Context(), h.Upstream, func(ctx context.Context, call upstream.Call) (<-chan providers.StreamChunk, error) {
		return call.Provider.StreamGenerateContent(ctx, req.Model, req.Body)
	})
	if err != nil {
		apierror.Write(w, r, err)
		return
	}
	writeSSE(w, r, ch)
}

func writeSSE(w http.ResponseWriter, r *http.Request, ch <-chan providers.StreamChunk) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	for chunk := range ch {
		if chunk.Error != nil {
			p := apierror.Map(chunk.Error)
			logging.FromContext(r.Context()).Warn("stream interrupted", "code", p.Code, "error", p.Message)
			data, _ := json.Marshal(map[string]apierror.Payload{"error": p})
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
			flush()
			return
		}
		_, _ = fmt.Fprintf(w, "data: %s\n\n", chunk.Data)
		flush()
	}
	if r.Context().Err() != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", providers.SSEDone)
	flush()
}

package api

import (
	"net/http"
	"time"

	"github.com/ferro-labs/genai-gateway/internal/httpio"
)

type keyHealth struct {
	KeyID               string `json:"keyId"`
	SuccessCount        uint64 `json:"successCount"`
	FailureCount        uint64 `json:"failureCount"`
	CooldownRemainingMs int64  `json:"cooldownRemainingMs"`
}

type providerHealth struct {
	RoutingMode        string      `json:"routingMode"`
	EndpointOverride   *string     `json:"endpointOverride"`
	APIVersionOverride *string     `json:"apiVersionOverride"`
	ConfiguredKeyCount int         `json:"configuredKeyCount"`
	AvailableKeyCount  int         `json:"availableKeyCount"`
	FailureCooldownMs  int64       `json:"failureCooldownMs"`
	Keys               []keyHealth `json:"keys"`
}

type healthResponse struct {
	Status        string         `json:"status"`
	Service       string         `json:"service"`
	Environment   string         `json:"environment"`
	Timestamp     string         `json:"timestamp"`
	UptimeSeconds int64          `json:"uptimeSeconds"`
	Provider      providerHealth `json:"provider"`
}

// health handles GET /health. It reads only local state.
func (h *Handlers) health(w http.ResponseWriter, _ *http.Request) {
	now := h.now()
	cfg := h.Upstream.ConfigSnapshot()
	snap := h.Upstream.Pool().Snapshot(now)

	keys := make([]keyHealth, 0, len(snap.Keys))
	for _, k := range snap.Keys {
		keys = append(keys, keyHealth{
			KeyID:               k.KeyID,
			SuccessCount:        k.SuccessCount,
			FailureCount:        k.FailureCount,
			CooldownRemainingMs: k.CooldownRemaining.Milliseconds(),
		})
	}

	uptime := int64(0)
	if !h.Started.IsZero() {
		uptime = int64(now.Sub(h.Started) / time.Second)
	}

	httpio.WriteJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Service:       h.Service.Name,
		Environment:   h.Service.Environment,
		Timestamp:     now.UTC().Format(time.RFC3339),
		UptimeSeconds: uptime,
		Provider: providerHealth{
			RoutingMode:        cfg.RoutingMode,
			EndpointOverride:   optional(cfg.EndpointOverride),
			APIVersionOverride: optional(cfg.APIVersionOverride),
			ConfiguredKeyCount: snap.Configured,
			AvailableKeyCount:  snap.Available,
			FailureCooldownMs:  snap.Cooldown.Milliseconds(),
			Keys:               keys,
		},
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/DanielPopoola/powervend/internal/interfaces/rest"
)

const healthTimeout = 2 * time.Second

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// Health pings every registered dependency. Any failure makes the whole
// service report unavailable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(h.health))
	for name := range h.health {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "ok", Components: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.health[name].Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "component", name, "error", err)
			resp.Components[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = "ok"
	}

	rest.WriteJSON(w, status, resp)
}

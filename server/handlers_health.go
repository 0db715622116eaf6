package server

import (
	"context"
	"net/http"
)

// HandleHealthz responds to liveness probes by pinging the store.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz runs the store ping and every configured check, stopping at
// the first failure.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := append([]Check{{Name: "store", Fn: h.store.Ping}}, h.checks...)
	for _, check := range checks {
		if err := runCheck(r.Context(), check); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.Name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func runCheck(ctx context.Context, c Check) error {
	if c.Fn == nil {
		return nil
	}
	return c.Fn(ctx)
}

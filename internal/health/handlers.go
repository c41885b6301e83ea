package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Checker probes the session backend for readiness.
type Checker interface {
	Ping(ctx context.Context) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Sessions Checker
	Timeout  time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on the session backend probe.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Sessions == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	sessionStatus := "ok"
	if err := h.Sessions.Ping(ctx); err != nil {
		sessionStatus = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	if sessionStatus != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"sessions": sessionStatus})
}

func (h Handler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.Timeout
}

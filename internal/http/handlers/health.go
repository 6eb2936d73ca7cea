package handlers

import (
	"context"
	"net/http"
	"time"

	"afripay/internal/solanapay"
)

// ChainHealth reports Solana RPC health; *solanapay.Client implements it.
type ChainHealth interface {
	Health(ctx context.Context) solanapay.Health
}

// Health serves the liveness and readiness probes. Redis is optional.
type Health struct {
	DB      func(ctx context.Context) error
	Redis   func(ctx context.Context) error
	Chain   ChainHealth
	Env     string
	Network string
	Started time.Time
}

type check struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func probe(ctx context.Context, fn func(context.Context) error) check {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		return check{Status: "unhealthy", Error: err.Error()}
	}
	return check{Status: "healthy"}
}

// Basic handles GET /health
func (h *Health) Basic() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"timestamp":   time.Now().UTC(),
			"uptime":      time.Since(h.Started).Round(time.Second).String(),
			"environment": h.Env,
			"network":     h.Network,
		})
	}
}

// Detailed checks every dependency and answers 503 when any is down.
func (h *Health) Detailed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]any{"database": probe(r.Context(), h.DB)}
		healthy := checks["database"].(check).Status == "healthy"

		if h.Redis != nil {
			c := probe(r.Context(), h.Redis)
			checks["redis"] = c
			healthy = healthy && c.Status == "healthy"
		}
		if h.Chain != nil {
			c := h.Chain.Health(r.Context())
			checks["solana"] = c
			healthy = healthy && c.Status == "healthy"
		}

		status, code := "healthy", http.StatusOK
		if !healthy {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"status":      status,
			"timestamp":   time.Now().UTC(),
			"uptime":      time.Since(h.Started).Round(time.Second).String(),
			"environment": h.Env,
			"checks":      checks,
		})
	}
}

// Ready answers 503 until the database is reachable.
func (h *Health) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c := probe(r.Context(), h.DB); c.Status != "healthy" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "reason": "database unavailable", "error": c.Error})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	}
}

func (h *Health) Live() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "alive"})
	}
}

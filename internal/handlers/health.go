package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/maison-curio/api/internal/repositories"
)

// BuildInfo carries the build metadata reported by the health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	health repositories.HealthRepository
	build  BuildInfo
	clock  func() time.Time
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithHealthRepository wires the dependency probe used by /readyz.
func WithHealthRepository(repo repositories.HealthRepository) HealthOption {
	return func(h *HealthHandlers) {
		h.health = repo
	}
}

// WithHealthBuildInfo sets the build metadata included in probe responses.
func WithHealthBuildInfo(info BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthClock overrides the time source, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs the probe handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		build: BuildInfo{StartedAt: time.Now()},
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Healthz is the liveness probe: the process is up and serving.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()

	payload := map[string]any{
		"status":    "ok",
		"timestamp": now.Format(time.RFC3339),
	}
	if !h.build.StartedAt.IsZero() {
		payload["uptime"] = now.Sub(h.build.StartedAt).String()
	}
	if h.build.Version != "" {
		payload["version"] = h.build.Version
	}
	if h.build.CommitSHA != "" {
		payload["commitSha"] = h.build.CommitSHA
	}
	if h.build.Environment != "" {
		payload["environment"] = h.build.Environment
	}

	writeHealthJSON(w, http.StatusOK, payload)
}

// Readyz is the readiness probe: backing dependencies answer within their timeouts.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()

	if h.health == nil {
		writeHealthJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": now.Format(time.RFC3339),
		})
		return
	}

	if err := h.health.Ping(r.Context()); err != nil {
		writeHealthJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "degraded",
			"timestamp": now.Format(time.RFC3339),
			"detail":    err.Error(),
		})
		return
	}

	writeHealthJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": now.Format(time.RFC3339),
	})
}

func writeHealthJSON(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

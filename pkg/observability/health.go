package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// HealthChecker reports liveness plus per-dependency configured/connected flags
type HealthChecker struct {
	redis    *redis.Client
	services map[string]func() bool
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{
		redis:    redisClient,
		services: make(map[string]func() bool),
	}
}

// AddService registers a named dependency with its configured/connected probe
func (h *HealthChecker) AddService(name string, probe func() bool) {
	h.services[name] = probe
}

// HealthStatus is the /health response body
type HealthStatus struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Services  map[string]bool `json:"services"`
}

// Check gathers the current status of every registered dependency
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Services:  make(map[string]bool, len(h.services)+1),
	}

	if h.redis != nil {
		status.Services["redis"] = h.redis.Ping(ctx).Err() == nil
	}

	for name, probe := range h.services {
		status.Services[name] = probe()
	}

	return status
}

// Handler serves the health check endpoint. It always returns 200: a degraded
// dependency is reported in the body, not as an HTTP failure.
func (h *HealthChecker) Handler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

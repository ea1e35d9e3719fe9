package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sellerhub/backend/internal/interfaces/http/dto"
)

// ReadinessCheck probes one dependency. The name shows up in the
// readiness response body.
type ReadinessCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// SystemHandler serves liveness and readiness endpoints
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	checks    []ReadinessCheck
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(checks ...ReadinessCheck) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		checks:    checks,
	}
}

// HealthResponse represents the health response body
type HealthResponse struct {
	Status    string `json:"status"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health is the liveness probe.
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(HealthResponse{
		Status:    "ok",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}))
}

// Ready is the readiness probe. It runs every registered dependency
// check and fails with 503 if any dependency is down.
// GET /ready
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for _, check := range h.checks {
		if err := check.Probe(ctx); err != nil {
			results[check.Name] = err.Error()
			healthy = false
		} else {
			results[check.Name] = "ok"
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse(dto.ErrCodeUnavailable, "One or more dependencies are unavailable"))
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(results))
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Checker reports whether a dependency is reachable
type Checker func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	service string
	checks  map[string]Checker
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler; checks are run by readiness only
func NewHealthHandler(service string, checks map[string]Checker) *HealthHandler {
	return &HealthHandler{
		service: service,
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

// HealthCheck handles GET /health
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   h.service,
		"timestamp": time.Now().UTC(),
	})
}

// ReadinessCheck handles GET /ready
// @Summary Readiness check
// @Description Ping every configured dependency
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	c.JSON(status, gin.H{
		"status":       state,
		"service":      h.service,
		"dependencies": results,
	})
}

// RegisterRoutes registers the probes at the router root
func (h *HealthHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency that can report its connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports the health of a long-lived connection.
type HealthChecker interface {
	IsHealthy() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	database  Pinger
	cache     Pinger
	publisher HealthChecker
}

// NewHealthHandler creates a new HealthHandler instance. Nil dependencies are
// not checked.
func NewHealthHandler(database, cache Pinger, publisher HealthChecker) *HealthHandler {
	return &HealthHandler{
		database:  database,
		cache:     cache,
		publisher: publisher,
	}
}

// LivenessProbe checks if the application is running.
func (h *HealthHandler) LivenessProbe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
		"time":   time.Now(),
	})
}

// ReadinessProbe checks if the application is ready to serve traffic.
func (h *HealthHandler) ReadinessProbe(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	body := gin.H{"status": "UP", "time": time.Now()}
	healthy := true

	if h.database != nil {
		if err := h.database.Ping(ctx); err != nil {
			body["database"] = "unhealthy"
			body["error"] = err.Error()
			healthy = false
		} else {
			body["database"] = "healthy"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			body["redis"] = "unhealthy"
			healthy = false
		} else {
			body["redis"] = "healthy"
		}
	}

	if h.publisher != nil {
		if !h.publisher.IsHealthy() {
			body["rabbitmq"] = "unhealthy"
			healthy = false
		} else {
			body["rabbitmq"] = "healthy"
		}
	}

	if !healthy {
		body["status"] = "DOWN"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

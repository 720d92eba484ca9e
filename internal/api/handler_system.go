package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const serviceName = "Beacon Network API"

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   serviceName,
	})
}

// Root handles GET /.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        serviceName,
		"description": "Offline Internet Emergency Communication System",
		"version":     "1.0.0",
		"health":      "/health",
		"metrics":     "/metrics",
	})
}

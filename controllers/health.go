package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /api/v1/health
func (h *Handlers) Health(c *gin.Context) {
	if h.Ping != nil {
		if err := h.Ping(); err != nil {
			h.Logger.WithError(err).Warn("health check: database unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Bursary Management API is running",
	})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string `json:"status"    example:"healthy"`
	Timestamp string `json:"timestamp" example:"2025-03-09T12:00:00.000000"`
}

// Health godoc
// @ID          health
// @Summary     Liveness probe
// @Tags        System
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().Format("2006-01-02T15:04:05.000000"),
	})
}

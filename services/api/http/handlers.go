package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NotReadyMessage is returned with 503 until the first snapshot arrives.
const NotReadyMessage = "no observation data yet, please retry later"

// handleLatest returns the cached snapshot verbatim.
// GET /api/weather/latest
func (s *Server) handleLatest(c *gin.Context) {
	snapshot, ok := s.slot.Get()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": NotReadyMessage})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", snapshot)
}

func (s *Server) handleHealth(c *gin.Context) {
	_, ready := s.slot.Get()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ready": ready})
}

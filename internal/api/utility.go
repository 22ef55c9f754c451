package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetHealth implements GET /utility/health?deep=bool (spec §6.1).
// Shallow returns ok without checking anything. Deep reports the HTTP
// core's circuit-breaker states and returns "degraded" when any breaker is
// open; it does not probe providers or check configuration.
func (s *Server) GetHealth(c *gin.Context) {
	deep := c.Query("deep") == "true"
	if !deep {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "deep": false})
		return
	}

	cbStatus := s.HTTPCore.CircuitBreakerStatus()
	healthy := true
	for _, metrics := range cbStatus {
		if state, ok := metrics["state"]; ok && state == "open" {
			healthy = false
		}
	}
	status := "ok"
	if !healthy {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "deep": true, "circuit_breakers": cbStatus})
}

// GetMetrics implements GET /utility/metrics (spec §6.1, §4.1).
func (s *Server) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"circuit_breakers": s.HTTPCore.CircuitBreakerStatus()})
}

// GetCircuitBreakers implements GET /utility/circuit-breakers (spec §6.1).
func (s *Server) GetCircuitBreakers(c *gin.Context) {
	c.JSON(http.StatusOK, s.HTTPCore.CircuitBreakerStatus())
}

// PostResetCircuitBreaker implements
// POST /utility/circuit-breakers/{service}/reset (admin-only, spec §6.1).
func (s *Server) PostResetCircuitBreaker(c *gin.Context) {
	s.HTTPCore.ResetCircuitBreaker(c.Param("service"))
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// GetStorageStats implements GET /utility/stats/storage (spec §6.1).
func (s *Server) GetStorageStats(c *gin.Context) {
	stats, err := s.Repo.GetStats(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

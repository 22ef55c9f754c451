package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/riskguard/analyzer/internal/apperr"
	"github.com/riskguard/analyzer/internal/storage"
)

// GetThreads implements GET /agent/threads?limit=50 (spec §6.1).
func (s *Server) GetThreads(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	threads, err := s.Repo.ListThreads(c.Request.Context(), limit)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads, "count": len(threads)})
}

// GetThreadHistory implements GET /agent/thread_history/{thread_id}
// (spec §6.1).
func (s *Server) GetThreadHistory(c *gin.Context) {
	thread, err := s.Repo.GetThread(c.Request.Context(), c.Param("thread_id"))
	if err != nil {
		if err == storage.ErrNotFound {
			writeError(c, http.StatusNotFound, apperr.NotFound, "thread not found")
			return
		}
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

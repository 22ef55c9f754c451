package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter wires every route named in spec §6.1 with its per-route rate
// limit and, for admin routes, the constant-time token check.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")

	agent := v1.Group("/agent")
	agent.POST("/analyze-client", rateLimit(5), s.PostAnalyzeClient)
	agent.POST("/analyze-client/async", rateLimit(5), s.PostAnalyzeClientAsync)
	agent.GET("/task/:task_id", rateLimit(30), s.GetTaskStatus)
	agent.GET("/threads", rateLimit(20), s.GetThreads)
	agent.GET("/thread_history/:thread_id", rateLimit(30), s.GetThreadHistory)
	agent.DELETE("/analyze/:session_id", rateLimit(30), s.DeleteAnalyzeSession)
	agent.POST("/feedback", rateLimit(30), s.PostFeedback)

	reports := v1.Group("/reports")
	reports.GET("", rateLimit(30), s.GetReports)
	reports.GET("/:report_id", rateLimit(30), s.GetReport)
	reports.DELETE("/:report_id", rateLimit(60), adminAuth(s.AdminToken), s.DeleteReport)

	utility := v1.Group("/utility")
	utility.GET("/health", s.GetHealth)
	utility.GET("/metrics", rateLimit(60), s.GetMetrics)
	utility.GET("/circuit-breakers", rateLimit(60), s.GetCircuitBreakers)
	utility.POST("/circuit-breakers/:service/reset", rateLimit(60), adminAuth(s.AdminToken), s.PostResetCircuitBreaker)
	utility.GET("/stats/storage", rateLimit(60), s.GetStorageStats)

	return r
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/riskguard/analyzer/internal/apperr"
	"github.com/riskguard/analyzer/internal/model"
)

type analyzeRequest struct {
	ClientName      string `json:"client_name" binding:"required"`
	INN             string `json:"inn"`
	AdditionalNotes string `json:"additional_notes"`
}

// PostAnalyzeClient implements POST /agent/analyze-client (spec §6.1).
func (s *Server) PostAnalyzeClient(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "client_name is required")
		return
	}

	task := model.AnalysisTask{
		TaskID:     newTaskID(),
		ClientName: req.ClientName,
		INN:        req.INN,
		Notes:      req.AdditionalNotes,
		Priority:   5,
		CreatedAt:  nowUTC(),
		Status:     model.TaskProcessing,
	}

	stream := c.Query("stream") == "true"
	if stream {
		c.Writer.WriteHeader(http.StatusOK)
		s.SSE.Stream(c.Request.Context(), c.Writer, task.TaskID, task.ClientName, task.INN)
		return
	}

	state, err := s.Machine.Run(c.Request.Context(), task, nil)
	if err != nil && state == nil {
		writeErr(c, err)
		return
	}
	if state.Stage == model.StageFailed {
		c.JSON(apperr.HTTPStatus(apperr.KindOf(err)), gin.H{
			"status": "failed",
			"error":  apperr.ToEnvelope(err),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "report": state.Report})
}

// PostAnalyzeClientAsync implements POST /agent/analyze-client/async
// (spec §6.1, §4.8): enqueues the task and returns immediately.
func (s *Server) PostAnalyzeClientAsync(c *gin.Context) {
	if s.Publisher == nil {
		writeError(c, http.StatusServiceUnavailable, apperr.StorageUnavailable, "async queue unavailable")
		return
	}
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "client_name is required")
		return
	}
	task := model.AnalysisTask{
		TaskID:     newTaskID(),
		ClientName: req.ClientName,
		INN:        req.INN,
		Notes:      req.AdditionalNotes,
		Priority:   5,
		CreatedAt:  nowUTC(),
		Status:     model.TaskPending,
	}
	if err := s.Publisher.Enqueue(c.Request.Context(), task); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": task.TaskID})
}

// GetTaskStatus implements GET /agent/task/{task_id} (spec §6.1). Task
// status is derived from the thread snapshot keyed by task_id: the queue
// consumer uses task_id as the session id (spec §4.8 idempotency key).
func (s *Server) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("task_id")
	thread, err := s.Repo.GetThread(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "pending"})
		return
	}
	switch thread.ThreadData.Stage {
	case model.StageCompleted:
		c.JSON(http.StatusOK, gin.H{"status": "completed", "result": thread.ThreadData.Report})
	case model.StageFailed:
		c.JSON(http.StatusOK, gin.H{"status": "failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "processing"})
	}
}

// DeleteAnalyzeSession implements DELETE /agent/analyze/{session_id}
// (spec §6.1, §5 cancellation).
func (s *Server) DeleteAnalyzeSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if !s.Machine.Cancel(sessionID) {
		writeError(c, http.StatusNotFound, apperr.NotFound, "session not found or already finished")
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

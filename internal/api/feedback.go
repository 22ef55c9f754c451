package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/riskguard/analyzer/internal/model"
)

type feedbackRequest struct {
	ReportID      string               `json:"report_id" binding:"required"`
	Rating        model.FeedbackRating `json:"rating" binding:"required"`
	Comment       string               `json:"comment"`
	FocusAreas    []string             `json:"focus_areas"`
	RerunAnalysis bool                 `json:"rerun_analysis"`
}

// PostFeedback implements POST /agent/feedback (spec §6.1, §4.6 feedback
// loop). report_id doubles as the thread id the originating session wrote.
func (s *Server) PostFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "report_id and rating are required")
		return
	}
	switch req.Rating {
	case model.FeedbackAccurate, model.FeedbackPartiallyAccurate, model.FeedbackInaccurate:
	default:
		badRequest(c, "rating must be accurate, partially_accurate, or inaccurate")
		return
	}

	state, err := s.Machine.Feedback(c.Request.Context(), req.ReportID, req.Rating, req.Comment, req.FocusAreas, req.RerunAnalysis)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stage": state.Stage, "report": state.Report})
}

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/riskguard/analyzer/internal/apperr"
	"github.com/riskguard/analyzer/internal/model"
	"github.com/riskguard/analyzer/internal/storage"
)

// GetReports implements GET /reports (spec §6.1).
func (s *Server) GetReports(c *gin.Context) {
	f := storage.ReportFilter{
		INN:        c.Query("inn"),
		ClientName: c.Query("client_name"),
		RiskLevel:  model.RiskLevel(c.Query("risk_level")),
		Limit:      queryInt(c, "limit", 50),
		Offset:     queryInt(c, "offset", 0),
	}
	if v := c.Query("date_from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.DateFrom = &t
		}
	}
	if v := c.Query("date_to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.DateTo = &t
		}
	}
	if v := c.Query("min_risk_score"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.MinRiskScore = &n
		}
	}
	if v := c.Query("max_risk_score"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.MaxRiskScore = &n
		}
	}

	reports, err := s.Repo.ListReports(c.Request.Context(), f)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// GetReport implements GET /reports/{report_id} (spec §6.1).
func (s *Server) GetReport(c *gin.Context) {
	report, err := s.Repo.GetReport(c.Request.Context(), c.Param("report_id"))
	if err != nil {
		if err == storage.ErrNotFound {
			writeError(c, http.StatusNotFound, apperr.NotFound, "report not found")
			return
		}
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// DeleteReport implements DELETE /reports/{report_id} (admin-only per
// spec §6.1).
func (s *Server) DeleteReport(c *gin.Context) {
	if err := s.Repo.DeleteReport(c.Request.Context(), c.Param("report_id")); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

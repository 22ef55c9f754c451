package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/riskguard/analyzer/internal/apperr"
)

func writeError(c *gin.Context, status int, kind apperr.Kind, message string) {
	c.JSON(status, apperr.Envelope{Kind: kind, Message: message, RequestID: requestID(c)})
}

func writeErr(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.JSON(apperr.HTTPStatus(kind), apperr.Envelope{Kind: kind, Message: err.Error(), RequestID: requestID(c)})
}

func requestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return ""
}

func badRequest(c *gin.Context, message string) {
	writeError(c, http.StatusBadRequest, apperr.InvalidInput, message)
}

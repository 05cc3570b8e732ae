// Package httpx holds the gin response helpers shared by every handler.
package httpx

import (
	"github.com/gin-gonic/gin"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/apperr"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/logger"
)

// RequestIDKey is the gin context key holding the request correlation id.
const RequestIDKey = "request_id"

const internalMessage = "internal error"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	OK        bool              `json:"ok"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

// RequestID returns the correlation id assigned by the request id middleware.
func RequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// Error writes err as a JSON error body and aborts the chain. Internal
// errors are logged in full and reported to the client generically.
func Error(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal(internalMessage, err)
	}

	status := apperr.Status(e.Kind)
	body := ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Fields:  e.Fields,
	}

	if e.Kind == apperr.KindInternal {
		body.Message = internalMessage
		body.Fields = nil
		body.RequestID = RequestID(c)

		logger.Error("request failed", map[string]any{
			"request_id": body.RequestID,
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"error":      err,
		})
	}

	c.AbortWithStatusJSON(status, body)
}

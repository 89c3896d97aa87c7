package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"lenslink/pkg/logger"
	"lenslink/pkg/utils"
)

const RequestIDHeader = "X-Request-ID"

// RequestLoggerMiddleware tags each request with an id, echoes it back and
// logs the request once it completes.
func RequestLoggerMiddleware(log *logger.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = utils.GenerateRequestID()
		}
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))

		start := time.Now()
		c.Next()

		// websocket sessions are logged by the hub
		if c.IsWebsocket() {
			return
		}
		log.LogRequest(c.Request.Context(), c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Milliseconds())
	}
}

package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TraceIDHeader carries the trace ID in requests and responses.
const TraceIDHeader = "X-Trace-ID"

// GinMiddleware puts a trace ID on the request context (reusing the
// X-Trace-ID header when present), echoes it back, and logs one line per
// request once the handler chain has run.
func GinMiddleware(l *Logger) gin.HandlerFunc {
	l = OrNop(l)
	return func(c *gin.Context) {
		start := time.Now()

		ctx := WithTraceID(c.Request.Context(), c.GetHeader(TraceIDHeader))
		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceIDHeader, GetTraceID(ctx))

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			l.ErrorContext(ctx, "request failed", fields...)
		case c.Writer.Status() >= 400:
			l.WarnContext(ctx, "request rejected", fields...)
		default:
			l.InfoContext(ctx, "request handled", fields...)
		}
	}
}

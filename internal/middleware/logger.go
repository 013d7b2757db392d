package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const loggerKey = "logger"

// Logger logs every request and stores a request-scoped logger in the context.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctxLogger := log.With(zap.String("request_id", c.GetString(RequestIDKey)))
		c.Set(loggerKey, ctxLogger)

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
			ctxLogger.Error("HTTP request failed", fields...)
			return
		}
		ctxLogger.Info("HTTP request completed", fields...)
	}
}

// LoggerFrom returns the request-scoped logger, or fallback when none was set.
func LoggerFrom(c *gin.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := c.Get(loggerKey); ok {
		if zl, ok := l.(*zap.Logger); ok {
			return zl
		}
	}
	return fallback
}

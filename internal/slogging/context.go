package slogging

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GinContextLike defines a minimal interface for contexts usable with the logger
type GinContextLike interface {
	Get(key any) (any, bool)
	GetHeader(key string) string
	ClientIP() string
}

// ContextLogger adds request context to log messages
type ContextLogger struct {
	logger    *Logger
	slogger   *slog.Logger
	requestID string
	clientIP  string
	userID    string
}

// WithContext returns a context-aware logger that includes request information
func (l *Logger) WithContext(c GinContextLike) *ContextLogger {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
		if setter, ok := c.(interface{ Header(string, string) }); ok {
			setter.Header("X-Request-ID", requestID)
		}
	}

	userID := ""
	if v, ok := c.Get("userID"); ok {
		userID = fmt.Sprintf("%v", v)
	}

	contextLogger := l.slogger.With(
		slog.String("request_id", requestID),
		slog.String("client_ip", c.ClientIP()),
		slog.String("user_id", userID),
	)

	return &ContextLogger{
		logger:    l,
		slogger:   contextLogger,
		requestID: requestID,
		clientIP:  c.ClientIP(),
		userID:    userID,
	}
}

// Debug logs a debug-level message with request context
func (cl *ContextLogger) Debug(format string, args ...any) {
	if cl.logger.level > LogLevelDebug {
		return
	}
	cl.slogger.Debug(format1(format, args...))
}

// Info logs an info-level message with request context
func (cl *ContextLogger) Info(format string, args ...any) {
	if cl.logger.level > LogLevelInfo {
		return
	}
	cl.slogger.Info(format1(format, args...))
}

// Warn logs a warn-level message with request context
func (cl *ContextLogger) Warn(format string, args ...any) {
	if cl.logger.level > LogLevelWarn {
		return
	}
	cl.slogger.Warn(format1(format, args...))
}

// Error logs an error-level message with request context
func (cl *ContextLogger) Error(format string, args ...any) {
	cl.slogger.Error(format1(format, args...))
}

// RequestLogger returns gin middleware that logs each request with latency and status
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := Get().WithContext(c)
		c.Set("logger", logger)
		c.Next()
		logger.Info("%s %s status=%d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}

// GetContextLogger retrieves a logger from the gin context or creates one
func GetContextLogger(c *gin.Context) SimpleLogger {
	if v, exists := c.Get("logger"); exists {
		if logger, ok := v.(SimpleLogger); ok {
			return logger
		}
	}
	return Get().WithContext(c)
}

package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/bravo68web/qadeck/internal/application/dto"
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
	"github.com/bravo68web/qadeck/pkg/logger"
)

// RecoveryConfig holds configuration for the recovery middleware
type RecoveryConfig struct {
	Logger           *logger.Logger
	EnableStackTrace bool
	StackTraceSize   int
}

// DefaultRecoveryConfig returns a default recovery configuration
func DefaultRecoveryConfig() *RecoveryConfig {
	return &RecoveryConfig{
		EnableStackTrace: true,
		StackTraceSize:   4096,
	}
}

// RecoveryMiddleware returns a Gin middleware for panic recovery with logging
func RecoveryMiddleware() gin.HandlerFunc {
	return RecoveryMiddlewareWithConfig(DefaultRecoveryConfig())
}

// RecoveryMiddlewareWithConfig turns a panic into a 500 Result and logs it
func RecoveryMiddlewareWithConfig(cfg *RecoveryConfig) gin.HandlerFunc {
	if cfg == nil {
		cfg = DefaultRecoveryConfig()
	}

	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			log := cfg.Logger
			if log == nil {
				log = logger.Get()
			}

			fields := []logger.Field{
				logger.Any("panic", rec),
				logger.Method(c.Request.Method),
				logger.Path(c.Request.URL.Path),
				logger.ClientIP(c.ClientIP()),
			}
			if requestID := GetRequestID(c); requestID != "" {
				fields = append(fields, logger.RequestID(requestID))
			}
			if cfg.EnableStackTrace {
				stack := debug.Stack()
				if len(stack) > cfg.StackTraceSize {
					stack = stack[:cfg.StackTraceSize]
				}
				fields = append(fields, logger.String("stacktrace", string(stack)))
			}
			log.WithContext(c.Request.Context()).Error("Panic recovered", fields...)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				dto.Fail(apperrors.InternalError("", nil)))
		}()

		c.Next()
	}
}

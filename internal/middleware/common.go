// Package middleware adapts the gin middleware stack to zap logging and
// the apperrors.Kind taxonomy, in place of the ad hoc per-handler error
// responses the source used.
package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/apperrors"
)

// Logger records one structured line per request.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		)
	}
}

// Recovery converts a panic into a 500 INTERNAL_ERROR envelope instead of
// crashing the process.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.String("path", c.Request.URL.Path))
				c.JSON(500, errorEnvelope("INTERNAL_ERROR", "internal server error", nil))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// CORS allows the configured origins; "*" allows any.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if allowed[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// RequestID stamps every request with a correlation id: the client's
// X-Request-ID header if present, otherwise a freshly generated UUID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// errorEnvelope builds the {error, code, details} body spec.md §6.1 requires.
func errorEnvelope(code, message string, details map[string]any) gin.H {
	body := gin.H{"error": message, "code": code}
	if len(details) > 0 {
		body["details"] = details
	}
	return body
}

// HandleError maps any error returned by a handler into the response
// envelope and status code defined by its apperrors.Kind, defaulting to a
// 500 INTERNAL_ERROR for errors that never went through apperrors.
func HandleError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		c.JSON(500, errorEnvelope("INTERNAL_ERROR", err.Error(), nil))
		return
	}
	c.JSON(appErr.Kind.HTTPStatus(), errorEnvelope(codeOrDefault(appErr), appErr.Message, appErr.Details))
}

func codeOrDefault(err *apperrors.Error) string {
	if err.Code == "" {
		return strings.ToUpper(string(err.Kind))
	}
	return err.Code
}

package observability

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is the header name for request/correlation IDs
const RequestIDHeader = "X-Request-ID"

// responseWriter is a wrapper around gin.ResponseWriter that captures response size
type responseWriter struct {
	gin.ResponseWriter
	size int
}

func (w *responseWriter) Write(b []byte) (int, error) {
	size, err := w.ResponseWriter.Write(b)
	w.size += size
	return size, err
}

func (w *responseWriter) WriteString(s string) (int, error) {
	size, err := w.ResponseWriter.WriteString(s)
	w.size += size
	return size, err
}

// routeLabel prefers the registered route so metrics don't explode on unknown paths
func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// RequestLoggingMiddleware logs all HTTP requests with correlation IDs
func RequestLoggingMiddleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader(RequestIDHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		c.Set("correlation_id", correlationID)
		c.Header(RequestIDHeader, correlationID)

		ctx := WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: c.Writer}
		c.Writer = rw

		logger.Debug(ctx, "HTTP request started", map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		})

		c.Next()

		duration := time.Since(start)

		// auth runs after us, so pick the user up on the way out
		if userID, exists := c.Get("user_id"); exists {
			if uid, ok := userID.(string); ok {
				ctx = WithUserID(ctx, uid)
			}
		}

		fields := map[string]interface{}{
			"method":        c.Request.Method,
			"path":          c.Request.URL.Path,
			"status":        c.Writer.Status(),
			"duration_ms":   duration.Milliseconds(),
			"response_size": rw.size,
			"ip":            c.ClientIP(),
		}

		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
			logger.Error(ctx, "HTTP request failed", c.Errors.Last().Err, fields)
		} else if c.Writer.Status() >= 400 {
			logger.Warn(ctx, "HTTP request completed with error status", fields)
		} else {
			logger.Info(ctx, "HTTP request completed", fields)
		}

		RecordHTTPMetrics(c.Request.Method, routeLabel(c), c.Writer.Status(), duration, rw.size)
	}
}

// MetricsMiddleware records metrics for HTTP requests without logging them
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: c.Writer}
		c.Writer = rw

		c.Next()

		RecordHTTPMetrics(c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(start), rw.size)
	}
}

// RecoveryMiddleware recovers from panics and logs them
func RecoveryMiddleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), "Panic recovered", nil, map[string]interface{}{
					"panic":  err,
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
				})

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{
						"code":    "INTERNAL_ERROR",
						"message": "An unexpected error occurred",
					},
				})
			}
		}()

		c.Next()
	}
}

// HealthHandler serves the detailed dependency report. Unhealthy maps to 503.
func HealthHandler(checker *HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := checker.GetHealthResponse(c.Request.Context())

		statusCode := http.StatusOK
		if response.Status == HealthStatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, response)
	}
}

// MetricsEndpoint exposes prometheus metrics on a gin route
func MetricsEndpoint() gin.HandlerFunc {
	return gin.WrapH(MetricsHandler())
}

// CORSWithLogging adds CORS headers for the allowed origins and logs preflights.
// A "*" entry allows any origin.
func CORSWithLogging(logger *Logger, allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" && (allowAll || allowed[origin]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			logger.Debug(c.Request.Context(), "CORS preflight request", map[string]interface{}{
				"origin":  origin,
				"allowed": allowAll || allowed[origin],
				"method":  c.Request.Header.Get("Access-Control-Request-Method"),
			})
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

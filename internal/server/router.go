package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"naturelife-cert/internal/handlers"
)

// SetupRouter configures routes and middleware
func SetupRouter(h *handlers.Handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logrus.StandardLogger()))
	h.SetupRoutes(router)
	return router
}

// loggerMiddleware writes one structured access log line per request.
// Scrape traffic on /metrics and /healthz is logged at debug level.
func loggerMiddleware(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"user_agent": c.Request.UserAgent(),
		})
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			entry = entry.WithField("error", msg)
		}

		switch {
		case c.Writer.Status() >= 500:
			entry.Error("Request failed")
		case c.Request.URL.Path == "/metrics" || c.Request.URL.Path == "/healthz":
			entry.Debug("Request handled")
		default:
			entry.Info("Request handled")
		}
	}
}

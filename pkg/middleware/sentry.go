package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/ninersracing/kbwiki/pkg/logger"
	"github.com/sirupsen/logrus"
)

// SentryReporter captures panics and 5xx responses. It is a no-op beyond
// logging when sentry was not initialised.
func SentryReporter() gin.HandlerFunc {
	return func(c *gin.Context) {
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetRequest(c.Request)

		defer func() {
			if rec := recover(); rec != nil {
				logger.WithFields(logrus.Fields{"path": c.FullPath(), "panic": rec}).Error("panic recovered")
				hub.RecoverWithContext(c.Request.Context(), rec)
				hub.Flush(2 * time.Second)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()

		c.Next()

		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("route", c.FullPath())
				scope.SetTag("status", fmt.Sprint(status))
				if len(c.Errors) > 0 {
					hub.CaptureException(c.Errors.Last().Err)
					return
				}
				hub.CaptureMessage(fmt.Sprintf("%s %s -> %d", c.Request.Method, c.FullPath(), status))
			})
		}
	}
}

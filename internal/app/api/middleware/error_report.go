package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/fatflowers/lingobill/internal/platform/sentry"
)

// ErrorReportMiddleware forwards the last error attached with c.Error to the
// reporter. Handlers only attach unexpected failures, never rejections.
func ErrorReportMiddleware(r sentry.Reporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		r.CaptureError(c.Request.Context(), c.Errors.Last().Err, map[string]string{
			"route":  c.FullPath(),
			"method": c.Request.Method,
		})
	}
}

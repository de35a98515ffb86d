package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowMethods   = "GET, POST, DELETE, OPTIONS"
	corsAllowHeaders   = "Content-Type, " + HeaderRequestID
	corsExposeHeaders  = HeaderRequestID
	corsPreflightCache = "600"
)

// CORS lets browser chat clients on the configured department origins reach
// the API. An empty allowlist opens it to every origin. Preflights from an
// origin outside the allowlist are refused.
func CORS(allowlist []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, origin := range allowlist {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			allowed[trimmed] = struct{}{}
		}
	}
	allowAll := len(allowed) == 0
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		granted := ""
		switch {
		case allowAll:
			granted = "*"
		case origin != "":
			if _, ok := allowed[origin]; ok {
				granted = origin
			}
		}
		header := c.Writer.Header()
		if granted != "" {
			header.Set("Access-Control-Allow-Origin", granted)
			header.Set("Access-Control-Allow-Methods", corsAllowMethods)
			header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			header.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			if granted != "*" {
				header.Add("Vary", "Origin")
			}
		}
		if c.Request.Method == http.MethodOptions {
			if granted == "" {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			header.Set("Access-Control-Max-Age", corsPreflightCache)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows the configured origins with credentials so the
// session cookie travels cross-origin. A lone "*" opens the API to every
// origin but then never allows credentials. No origins means same-origin
// only.
func CORSMiddleware(allowed []string) gin.HandlerFunc {
	origins := make([]string, 0, len(allowed))
	allowAll := false
	for _, o := range allowed {
		o = strings.TrimSuffix(strings.TrimSpace(o), "/")
		switch {
		case o == "*":
			allowAll = true
		case o != "":
			origins = append(origins, o)
		}
	}

	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	switch {
	case allowAll:
		cfg.AllowAllOrigins = true
	case len(origins) > 0:
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	default:
		return func(c *gin.Context) { c.Next() }
	}
	return cors.New(cfg)
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORSConfig はクロスオリジンポリシーの設定。
type CORSConfig struct {
	// AllowedOrigins は資格情報付きリクエストを許可するオリジンの一覧。
	AllowedOrigins []string
	// AllowAll が真の場合はすべてのオリジンを許可する。資格情報は送信させない。
	AllowAll bool
	// AllowCredentials が真の場合はAccess-Control-Allow-Credentialsを付与する。
	AllowCredentials bool
}

// CORS は設定に従ってクロスオリジンリクエストを許可するGinミドルウェアを返す。
// プリフライト（OPTIONS）は常に204で中断する。
func CORS(cfg CORSConfig) gin.HandlerFunc {
	originsSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		originsSet[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := false
		switch {
		case cfg.AllowAll:
			c.Header("Access-Control-Allow-Origin", "*")
			allowed = true
		case origin != "":
			if _, ok := originsSet[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				if cfg.AllowCredentials {
					c.Header("Access-Control-Allow-Credentials", "true")
				}
				allowed = true
			}
		}

		if allowed {
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

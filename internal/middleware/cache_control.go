package middleware

import "github.com/gin-gonic/gin"

const (
	PublicCatalogCache = "public, max-age=300"
	NoStore            = "no-store"
)

// CacheControl sets the Cache-Control header. Handlers override it with
// NoStore on error responses.
func CacheControl(value string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", value)
		c.Next()
	}
}

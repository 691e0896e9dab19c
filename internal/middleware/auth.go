package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-sync-service/internal/models"
)

const (
	ExchangeRealm = "1C Exchange"

	APIKeyHeader   = "X-API-Key"
	AdminKeyHeader = "X-Admin-Key"
	AdminKeyQuery  = "key"
)

// BasicAuth protects the 1C exchange endpoint. With no configured
// credentials every request is rejected.
func BasicAuth(username, password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		if !ok || username == "" || password == "" || !secureEqual(user, username) || !secureEqual(pass, password) {
			c.Header("WWW-Authenticate", `Basic realm="`+ExchangeRealm+`"`)
			c.Data(http.StatusUnauthorized, "text/plain; charset=utf-8", []byte("failure\nUnauthorized"))
			c.Abort()
			return
		}
		c.Set("exchange_user", user)
		c.Next()
	}
}

// APIKeyAuth requires X-API-Key to match key. An empty key rejects all
// requests.
func APIKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" || !secureEqual(c.GetHeader(APIKeyHeader), key) {
			abortUnauthorized(c, "Valid X-API-Key header is required")
			return
		}
		c.Next()
	}
}

// AdminKeyAuth guards maintenance routes. The key may come from the
// X-Admin-Key header or the key query parameter. When no key is configured
// the routes do not exist.
func AdminKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error:   models.Error{Code: "NOT_FOUND", Message: "Not found"},
			})
			c.Abort()
			return
		}

		provided := c.GetHeader(AdminKeyHeader)
		if provided == "" {
			provided = c.Query(AdminKeyQuery)
		}
		if !secureEqual(provided, key) {
			abortUnauthorized(c, "Valid admin key is required")
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Success:   false,
		Error:     models.Error{Code: "UNAUTHORIZED", Message: message},
		RequestID: GetRequestID(c),
	})
	c.Abort()
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

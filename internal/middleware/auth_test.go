package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) (*gin.Engine, *int) {
	calls := 0
	r := gin.New()
	r.Use(RequestID())
	handlers := append(mw, func(c *gin.Context) {
		calls++
		c.String(http.StatusOK, "ok")
	})
	r.Any("/t", handlers...)
	return r, &calls
}

func TestBasicAuth(t *testing.T) {
	tests := []struct {
		name       string
		user, pass string
		setAuth    bool
		wantStatus int
	}{
		{"valid", "admin", "secret", true, http.StatusOK},
		{"wrong password", "admin", "nope", true, http.StatusUnauthorized},
		{"wrong user", "root", "secret", true, http.StatusUnauthorized},
		{"missing header", "", "", false, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, calls := newRouter(BasicAuth("admin", "secret"))
			req := httptest.NewRequest(http.MethodGet, "/t", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="1C Exchange"`, w.Header().Get("WWW-Authenticate"))
				assert.Equal(t, "failure\nUnauthorized", w.Body.String())
				assert.Zero(t, *calls)
			}
		})
	}
}

func TestBasicAuth_FailsClosedWithoutCredentials(t *testing.T) {
	r, calls := newRouter(BasicAuth("", ""))
	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.SetBasicAuth("", "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, *calls)
}

func TestAPIKeyAuth(t *testing.T) {
	r, _ := newRouter(APIKeyAuth("k1"))

	req := httptest.NewRequest(http.MethodPost, "/t", nil)
	req.Header.Set(APIKeyHeader, "k1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/t", nil)
	req.Header.Set(APIKeyHeader, "k2")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	assert.Contains(t, w.Body.String(), w.Header().Get(RequestIDHeader))
}

func TestAPIKeyAuth_FailsClosedWhenUnset(t *testing.T) {
	r, calls := newRouter(APIKeyAuth(""))
	req := httptest.NewRequest(http.MethodPost, "/t", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, *calls)
}

func TestAdminKeyAuth(t *testing.T) {
	r, _ := newRouter(AdminKeyAuth("adm"))

	req := httptest.NewRequest(http.MethodPost, "/t?key=adm", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/t", nil)
	req.Header.Set(AdminKeyHeader, "adm")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/t?key=bad", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminKeyAuth_DisabledIsNotFound(t *testing.T) {
	r, calls := newRouter(AdminKeyAuth(""))
	req := httptest.NewRequest(http.MethodPost, "/t?key=", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, *calls)
}

func TestRequestID(t *testing.T) {
	r, _ := newRouter()

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestCacheControl(t *testing.T) {
	r, _ := newRouter(CacheControl(PublicCatalogCache))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))
	assert.Equal(t, "public, max-age=300", w.Header().Get("Cache-Control"))
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

const frontend = "http://localhost:5173"

func corsRouter(origins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(origins))
	r.POST("/api/v1/intake/sessions/:id/intake", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func corsRequest(r *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/v1/intake/sessions/123/intake", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if method == http.MethodOptions {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSPreflightForKnownOrigin(t *testing.T) {
	w := corsRequest(corsRouter(frontend), http.MethodOptions, frontend)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, frontend, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
}

func TestCORSExposesRequestIDOnPost(t *testing.T) {
	w := corsRequest(corsRouter(frontend+"/"), http.MethodPost, frontend)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, frontend, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Request-Id")
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	w := corsRequest(corsRouter(frontend), http.MethodPost, "https://evil.example")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcardDropsCredentials(t *testing.T) {
	w := corsRequest(corsRouter("*", frontend), http.MethodPost, "https://clinic.example")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSWithoutUsableOriginsPassesThrough(t *testing.T) {
	w := corsRequest(corsRouter("localhost:5173", " "), http.MethodPost, frontend)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSIgnoresSameOriginRequests(t *testing.T) {
	w := corsRequest(corsRouter(frontend), http.MethodPost, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"mirror-backend/internal/shared/auth"
)

func newAdminRouter(t *testing.T) (*gin.Engine, *auth.Signer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	signer, err := auth.NewSigner("test-secret", time.Hour, false)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	router := gin.New()
	router.Use(AdminAuth(signer))
	router.GET("/api/v1/admin/leads", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin": AdminFromContext(c)})
	})
	router.OPTIONS("/api/v1/admin/leads", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router, signer
}

func TestAdminAuthAllowsOptionsWithoutToken(t *testing.T) {
	router, _ := newAdminRouter(t)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodOptions, "/api/v1/admin/leads", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAdminAuthRejectsMissingOrBadToken(t *testing.T) {
	router, _ := newAdminRouter(t)
	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer not.a.token"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/leads", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, resp.Code)
		}
	}
}

func TestAdminAuthRequiresAdminRole(t *testing.T) {
	router, signer := newAdminRouter(t)
	viewer := auth.AdminClaims("someone")
	viewer.Role = "viewer"
	token, _ := signer.Sign(viewer)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/leads", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-admin role, got %d", resp.Code)
	}
}

func TestAdminAuthAcceptsValidToken(t *testing.T) {
	router, signer := newAdminRouter(t)
	token, _ := signer.Sign(auth.AdminClaims("admin"))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/leads", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

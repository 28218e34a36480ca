package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mirror-backend/internal/shared/auth"
	"mirror-backend/internal/shared/server/middleware"
	"mirror-backend/internal/shared/storage/object/local"
)

type adminFixture struct {
	router *gin.Engine
	svc    *Service
	store  *local.Store
}

func setupAdmin(t *testing.T) adminFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	signer, err := auth.NewSigner("test-secret", time.Hour, false)
	require.NoError(t, err)

	svc, _ := fixedService()
	store := local.New(t.TempDir())
	h := &Handler{Svc: svc, Store: store, Signer: signer, Password: "letmein"}

	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"), middleware.AdminAuth(signer))
	return adminFixture{router: r, svc: svc, store: store}
}

func (f adminFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

func (f adminFixture) login(t *testing.T) string {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/v1/admin/login", "", map[string]string{"password": "letmein"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var out struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expiresIn"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	assert.Equal(t, 3600, out.ExpiresIn)
	return out.Token
}

func TestAdminLoginRejectsWrongPassword(t *testing.T) {
	f := setupAdmin(t)
	resp := f.do(t, http.MethodPost, "/api/v1/admin/login", "", map[string]string{"password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := setupAdmin(t)
	for _, path := range []string{"/api/v1/admin/leads", "/api/v1/admin/leads/export"} {
		resp := f.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Code, path)
	}
}

func TestAdminListGetAndStatus(t *testing.T) {
	f := setupAdmin(t)
	token := f.login(t)
	lead, err := f.svc.Create(context.Background(), sampleLead("", time.Time{}))
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/api/v1/admin/leads?limit=10", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var list struct {
		Items []Lead `json:"items"`
		Limit int    `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, 10, list.Limit)

	resp = f.do(t, http.MethodGet, "/api/v1/admin/leads/"+lead.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = f.do(t, http.MethodPatch, "/api/v1/admin/leads/"+lead.ID+"/status", token, map[string]string{"status": "contacted"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var updated Lead
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &updated))
	assert.Equal(t, StatusContacted, updated.Status)

	resp = f.do(t, http.MethodPatch, "/api/v1/admin/leads/"+lead.ID+"/status", token, map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = f.do(t, http.MethodGet, "/api/v1/admin/leads/00000000-0000-0000-0000-000000000000", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = f.do(t, http.MethodGet, "/api/v1/admin/leads?status=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAdminExportCSV(t *testing.T) {
	f := setupAdmin(t)
	token := f.login(t)
	_, err := f.svc.Create(context.Background(), sampleLead("", time.Time{}))
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/api/v1/admin/leads/export", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/csv")
	assert.True(t, strings.HasPrefix(resp.Body.String(), strings.Join(CSVHeader, ",")))
}

func TestAdminPhoto(t *testing.T) {
	f := setupAdmin(t)
	token := f.login(t)

	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 1, 2, 3}
	stored, err := f.store.Save(context.Background(), "sess", "front.png", bytes.NewReader(png))
	require.NoError(t, err)

	in := sampleLead("", time.Time{})
	in.PhotoKeys = []string{stored.Key}
	lead, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/api/v1/admin/leads/"+lead.ID+"/photos/0", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "image/png", resp.Header().Get("Content-Type"))
	assert.Equal(t, png, resp.Body.Bytes())

	resp = f.do(t, http.MethodGet, "/api/v1/admin/leads/"+lead.ID+"/photos/1", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

package leads

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mirror-backend/internal/shared/auth"
	"mirror-backend/internal/shared/server/middleware"
	"mirror-backend/internal/shared/server/respond"
	"mirror-backend/internal/shared/storage/object"
	"mirror-backend/internal/shared/telemetry"
)

// Handler serves the admin lead console.
type Handler struct {
	Svc      *Service
	Store    object.ObjectStore
	Signer   *auth.Signer
	Password string
}

// RegisterRoutes attaches admin routes. Everything except login requires
// requireAdmin.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, requireAdmin gin.HandlerFunc) {
	admin := rg.Group("/admin")
	admin.POST("/login", h.login)

	secured := admin.Group("", requireAdmin)
	secured.GET("/leads", h.list)
	secured.GET("/leads/export", h.export)
	secured.GET("/leads/:id", h.get)
	secured.GET("/leads/:id/photos/:index", h.photo)
	secured.PATCH("/leads/:id/status", h.updateStatus)
}

type loginRequest struct {
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Validation(c, "password is required", nil)
		return
	}
	if err := auth.CheckPassword(h.Password, req.Password); err != nil {
		telemetry.Warn("admin.login_failed", map[string]any{"client_ip": c.ClientIP()})
		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "invalid credentials", nil)
		return
	}
	token, err := h.Signer.Sign(auth.AdminClaims("admin"))
	if err != nil {
		respond.Internal(c, "failed to issue token")
		return
	}
	respond.OK(c, gin.H{
		"token":     token,
		"expiresIn": int(h.Signer.TTL() / time.Second),
	})
}

func (h *Handler) list(c *gin.Context) {
	opts, ok := parseListOptions(c)
	if !ok {
		return
	}
	items, err := h.Svc.List(c.Request.Context(), opts)
	if err != nil {
		respond.Internal(c, "failed to list leads")
		return
	}
	respond.OK(c, gin.H{
		"items":  items,
		"limit":  opts.normalized().Limit,
		"offset": opts.normalized().Offset,
	})
}

func (h *Handler) export(c *gin.Context) {
	status, ok := parseStatusFilter(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="leads.csv"`)
	c.Status(http.StatusOK)
	if err := h.Svc.ExportCSV(c.Request.Context(), c.Writer, status); err != nil {
		telemetry.Error("leads.export_failed", map[string]any{"error": err})
	}
}

func (h *Handler) get(c *gin.Context) {
	lead, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLeadError(c, err)
		return
	}
	c.Set(middleware.LeadIDKey, lead.ID)
	respond.OK(c, lead)
}

func (h *Handler) photo(c *gin.Context) {
	lead, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLeadError(c, err)
		return
	}
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || idx < 0 || idx >= len(lead.PhotoKeys) {
		respond.NotFound(c, "photo not found")
		return
	}
	if h.Store == nil {
		respond.NotFound(c, "photo not found")
		return
	}
	rc, err := h.Store.Open(c.Request.Context(), lead.PhotoKeys[idx])
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			respond.NotFound(c, "photo not found")
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeStorage, "failed to read photo", nil)
		return
	}
	defer rc.Close()

	mimeType, body, err := object.Sniff(rc)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeStorage, "failed to read photo", nil)
		return
	}
	c.Header("Content-Type", mimeType)
	c.Header("Cache-Control", "private, no-store")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, body)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Validation(c, "status is required", nil)
		return
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		respondLeadError(c, err)
		return
	}
	lead, err := h.Svc.MarkStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		respondLeadError(c, err)
		return
	}
	c.Set(middleware.LeadIDKey, lead.ID)
	respond.OK(c, lead)
}

func parseListOptions(c *gin.Context) (ListOptions, bool) {
	var opts ListOptions
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			respond.Validation(c, "limit must be a positive integer", nil)
			return opts, false
		}
		opts.Limit = v
	}
	if raw := c.Query("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			respond.Validation(c, "offset must be a non-negative integer", nil)
			return opts, false
		}
		opts.Offset = v
	}
	status, ok := parseStatusFilter(c)
	opts.Status = status
	return opts, ok
}

func parseStatusFilter(c *gin.Context) (Status, bool) {
	raw := c.Query("status")
	if raw == "" {
		return "", true
	}
	status, err := ParseStatus(raw)
	if err != nil {
		respondLeadError(c, err)
		return "", false
	}
	return status, true
}

func respondLeadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.NotFound(c, "lead not found")
	case errors.Is(err, ErrInvalidStatus):
		respond.Validation(c, "unknown status", []map[string]string{
			{"field": "status", "issue": "must be one of new, notified, contacted, closed"},
		})
	default:
		respond.Internal(c, "lead operation failed")
	}
}

package analysis

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"mirror-backend/internal/diagnosis"
	"mirror-backend/internal/shared/server/respond"
)

const maxBodyBytes = 64 << 10

// Handler wires HTTP handlers to the analysis service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analysis", h.analyze)
}

func (h *Handler) analyze(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		respond.Validation(c, "could not read request body", nil)
		return
	}
	if len(body) > maxBodyBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, respond.CodePayloadTooLarge, "request body too large", nil)
		return
	}

	in, fields, err := Decode(body)
	if err != nil {
		respond.Validation(c, "request body must be a JSON object", nil)
		return
	}
	if len(fields) > 0 {
		respond.Validation(c, "invalid questionnaire", fields)
		return
	}

	report, err := h.Svc.Analyze(c.Request.Context(), in)
	if err != nil {
		RespondError(c, err)
		return
	}
	respond.OK(c, report)
}

// RespondError maps analysis errors to HTTP responses.
func RespondError(c *gin.Context, err error) {
	var verr *diagnosis.ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Validation(c, "invalid questionnaire", verr.Fields)
	case errors.Is(err, diagnosis.ErrInvalidInput):
		respond.Validation(c, "invalid questionnaire", nil)
	default:
		respond.Internal(c, "analysis failed")
	}
}

package intake

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mirror-backend/internal/analysis"
	"mirror-backend/internal/diagnosis"
	"mirror-backend/internal/leads"
	"mirror-backend/internal/shared/server/middleware"
	"mirror-backend/internal/shared/server/respond"
)

const maxMultipartBytes = 2*MaxPhotoBytes + 1<<20

// Handler wires HTTP handlers to the intake service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the wizard routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/intake/sessions")
	g.POST("", h.start)
	g.GET("/:id", h.get)
	g.POST("/:id/consent", h.consent)
	g.POST("/:id/intake", h.submitIntake)
	g.POST("/:id/back", h.back)
	g.POST("/:id/contact", h.submitContact)
}

func (h *Handler) start(c *gin.Context) {
	var locale diagnosis.Locale
	if raw := strings.TrimSpace(c.Query("locale")); raw != "" {
		locale = diagnosis.ParseLocale(raw)
	}
	sess, err := h.Svc.Start(c.Request.Context(), locale)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Set(middleware.SessionIDKey, sess.ID)
	respond.Created(c, sess)
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.SessionIDKey, id)
	sess, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond.OK(c, sess)
}

func (h *Handler) consent(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.SessionIDKey, id)
	c.Set(middleware.TransitionKey, string(EventConsent))

	var form ConsentForm
	if err := c.ShouldBindJSON(&form); err != nil {
		respond.Validation(c, "request body must be a JSON object", nil)
		return
	}
	sess, err := h.Svc.Consent(c.Request.Context(), id, form)
	if err != nil {
		respondError(c, err)
		return
	}
	respond.OK(c, sess)
}

func (h *Handler) submitIntake(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.SessionIDKey, id)
	c.Set(middleware.TransitionKey, string(EventSubmitIntake))

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxMultipartBytes)
	if err := c.Request.ParseMultipartForm(maxMultipartBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, respond.CodePayloadTooLarge, "upload too large", nil)
			return
		}
		respond.Validation(c, "expected multipart form data", nil)
		return
	}

	form, fields := parseIntakeForm(c)
	for _, name := range []string{"photoFront", "photoSide"} {
		up, err := readUpload(c, name)
		if err != nil {
			respondError(c, err)
			return
		}
		if name == "photoFront" {
			form.Front = up
		} else {
			form.Side = up
		}
	}
	if len(fields) > 0 {
		respond.Validation(c, "invalid questionnaire", fields)
		return
	}

	sess, err := h.Svc.SubmitIntake(c.Request.Context(), id, form)
	if err != nil {
		respondError(c, err)
		return
	}
	respond.OK(c, sess)
}

func (h *Handler) back(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.SessionIDKey, id)
	c.Set(middleware.TransitionKey, string(EventBack))

	sess, err := h.Svc.Back(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond.OK(c, sess)
}

func (h *Handler) submitContact(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.SessionIDKey, id)
	c.Set(middleware.TransitionKey, string(EventSubmitContact))

	var form ContactForm
	if err := c.ShouldBindJSON(&form); err != nil {
		respond.Validation(c, "request body must be a JSON object", nil)
		return
	}
	sess, err := h.Svc.SubmitContact(c.Request.Context(), id, form, middleware.RequestIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Set(middleware.LeadIDKey, sess.LeadID)
	respond.OK(c, sess)
}

// parseIntakeForm reads the questionnaire fields, accepting canonical codes
// and the Korean form labels.
func parseIntakeForm(c *gin.Context) (IntakeForm, []diagnosis.FieldError) {
	var (
		form   IntakeForm
		fields []diagnosis.FieldError
		err    error
	)
	issue := func(field string, err error) {
		fields = append(fields, diagnosis.FieldError{Field: field, Issue: strings.TrimPrefix(err.Error(), diagnosis.ErrInvalidInput.Error()+": ")})
	}

	for _, raw := range c.PostFormArray("concerns") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				form.Concerns = append(form.Concerns, part)
			}
		}
	}

	q := &form.Questionnaire
	if q.Age, err = diagnosis.ParseAge(c.PostForm("age")); err != nil {
		issue("age", err)
	}
	if q.SkinType, err = diagnosis.ParseSkinType(c.PostForm("skinType")); err != nil {
		issue("skinType", err)
	}
	if q.SaggingLevel, err = diagnosis.ParseLevel("saggingLevel", c.PostForm("saggingLevel")); err != nil {
		issue("saggingLevel", err)
	}
	if q.WrinkleLevel, err = diagnosis.ParseLevel("wrinkleLevel", c.PostForm("wrinkleLevel")); err != nil {
		issue("wrinkleLevel", err)
	}
	if q.Budget, err = diagnosis.ParseBudget(c.PostForm("budget")); err != nil {
		issue("budget", err)
	}
	if q.DowntimeOK, err = diagnosis.ParseDowntime(c.PostForm("downtimeOk")); err != nil {
		issue("downtimeOk", err)
	}
	return form, fields
}

func readUpload(c *gin.Context, field string) (*Upload, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fh.Size > MaxPhotoBytes {
		return nil, ErrPhotoTooLarge
	}
	return readFileHeader(fh)
}

func readFileHeader(fh *multipart.FileHeader) (*Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxPhotoBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxPhotoBytes {
		return nil, ErrPhotoTooLarge
	}
	return &Upload{FileName: fh.Filename, Data: data}, nil
}

func respondError(c *gin.Context, err error) {
	var gerr *GuardError
	switch {
	case errors.As(err, &gerr):
		respond.Validation(c, "step requirements not met", gerr.Fields)
	case errors.Is(err, ErrSessionNotFound):
		respond.NotFound(c, "session not found or expired")
	case errors.Is(err, ErrSessionConflict):
		respond.Error(c, http.StatusConflict, respond.CodeConflict, "session was updated by another request", nil)
	case errors.Is(err, ErrInvalidTransition):
		respond.Error(c, http.StatusConflict, respond.CodeInvalidTransition, err.Error(), nil)
	case errors.Is(err, ErrPhotoTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, respond.CodePayloadTooLarge, err.Error(), nil)
	case errors.Is(err, ErrUnsupportedPhoto):
		respond.Error(c, http.StatusUnsupportedMediaType, respond.CodeUnsupportedMedia, ErrUnsupportedPhoto.Error(), nil)
	case errors.Is(err, leads.ErrInvalidLead):
		respond.Validation(c, err.Error(), nil)
	case errors.Is(err, diagnosis.ErrInvalidInput):
		analysis.RespondError(c, err)
	default:
		respond.Internal(c, "intake step failed")
	}
}

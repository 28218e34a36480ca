package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"mirror-backend/internal/analysis"
	"mirror-backend/internal/diagnosis"
	"mirror-backend/internal/leads"
	"mirror-backend/internal/narrative"
	"mirror-backend/internal/queue"
	"mirror-backend/internal/shared/metrics"
	"mirror-backend/internal/shared/server/middleware"
	"mirror-backend/internal/shared/storage/object"
	"mirror-backend/internal/shared/telemetry"
)

// MaxPhotoBytes caps each uploaded photo.
const MaxPhotoBytes = 10 << 20

// contactClaimTTL bounds how long a crashed contact submission blocks retries.
const contactClaimTTL = 30 * time.Second

var (
	ErrPhotoTooLarge    = errors.New("photo exceeds 10 MB")
	ErrUnsupportedPhoto = errors.New("photo must be a JPEG, PNG or WebP image")
)

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Analyzer runs the questionnaire analysis.
type Analyzer interface {
	Analyze(ctx context.Context, in analysis.Input) (analysis.Report, error)
}

// LeadCreator persists a finished wizard as a lead.
type LeadCreator interface {
	Create(ctx context.Context, lead leads.Lead) (leads.Lead, error)
}

// Service moves sessions through the wizard.
type Service struct {
	Sessions      SessionStore
	Analyzer      Analyzer
	Leads         LeadCreator
	Photos        object.ObjectStore
	Queue         queue.Client
	DefaultLocale diagnosis.Locale
	Now           func() time.Time

	locks sessionLocks
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Start opens a new session on the consent step.
func (s *Service) Start(ctx context.Context, locale diagnosis.Locale) (Session, error) {
	if locale == "" {
		locale = s.DefaultLocale
	}
	if locale == "" {
		locale = diagnosis.LocaleKO
	}
	now := s.now()
	sess := Session{
		ID:        uuid.NewString(),
		State:     StateConsent,
		Locale:    locale,
		Concerns:  []string{},
		PhotoKeys: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Sessions.Create(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	telemetry.Info("intake.session.started", map[string]any{"session_id": sess.ID, "locale": locale})
	return sess, nil
}

// Get returns a session.
func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	return s.Sessions.Get(ctx, id)
}

// Consent records both acknowledgements and opens the intake step.
func (s *Service) Consent(ctx context.Context, id string, form ConsentForm) (Session, error) {
	return s.transition(ctx, id, EventConsent, func(sess *Session) error {
		if err := form.check(); err != nil {
			return err
		}
		now := s.now()
		sess.Consent = Consent{PrivacyAcceptedAt: &now, DisclaimerAcceptedAt: &now}
		return nil
	})
}

// SubmitIntake stores the photos, runs the analysis and opens the contact step.
func (s *Service) SubmitIntake(ctx context.Context, id string, form IntakeForm) (Session, error) {
	return s.transition(ctx, id, EventSubmitIntake, func(sess *Session) error {
		if err := form.check(); err != nil {
			return err
		}

		uploads := []*Upload{form.Front}
		if form.Side != nil && len(form.Side.Data) > 0 {
			uploads = append(uploads, form.Side)
		}
		photos := make([]narrative.Photo, 0, len(uploads))
		mimes := make([]string, 0, len(uploads))
		for _, u := range uploads {
			mime, err := checkPhoto(u.Data)
			if err != nil {
				return err
			}
			photos = append(photos, narrative.Photo{MimeType: mime, Data: u.Data})
			mimes = append(mimes, mime)
		}

		report, err := s.Analyzer.Analyze(ctx, analysis.Input{
			Questionnaire: form.Questionnaire,
			Locale:        sess.Locale,
			Photos:        photos,
		})
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(uploads))
		for i, u := range uploads {
			name := []string{"front", "side"}[i] + photoExtensions[mimes[i]]
			stored, err := s.Photos.Save(ctx, sess.ID, name, bytes.NewReader(u.Data))
			if err != nil {
				s.dropPhotos(ctx, keys)
				return fmt.Errorf("store photo: %w", err)
			}
			keys = append(keys, stored.Key)
		}
		s.dropPhotos(ctx, sess.PhotoKeys)

		in := form.Questionnaire
		sess.Concerns = append([]string(nil), form.Concerns...)
		sess.Input = &in
		sess.PhotoKeys = keys
		sess.Report = &report
		return nil
	})
}

// Back returns from the contact step to the intake step.
func (s *Service) Back(ctx context.Context, id string) (Session, error) {
	return s.transition(ctx, id, EventBack, func(*Session) error { return nil })
}

// SubmitContact persists the lead, queues the desk notification and
// confirms the session.
func (s *Service) SubmitContact(ctx context.Context, id string, form ContactForm, requestID string) (Session, error) {
	return s.transition(ctx, id, EventSubmitContact, func(sess *Session) error {
		if err := form.check(); err != nil {
			return err
		}
		if sess.Input == nil || sess.Report == nil {
			return fmt.Errorf("%w: session has no analysis", ErrInvalidTransition)
		}
		report := sess.Report
		lead, err := s.Leads.Create(ctx, leads.Lead{
			SessionID:       sess.ID,
			Name:            form.Name,
			Phone:           form.Phone,
			PreferredTime:   form.PreferredTime,
			MarketingOptIn:  form.MarketingOptIn,
			Locale:          sess.Locale,
			Concerns:        sess.Concerns,
			Questionnaire:   *sess.Input,
			Rule:            report.Result.Rule,
			Recommendations: report.Result.Recommendations,
			Logic:           report.Result.Logic,
			Narrative:       report.Narrative,
			NarrativeSource: report.NarrativeSource,
			PromptHash:      report.PromptHash,
			PhotoKeys:       sess.PhotoKeys,
		})
		if err != nil {
			return err
		}
		sess.LeadID = lead.ID
		s.enqueue(ctx, lead.ID, requestID)
		return nil
	})
}

// transition loads a session, checks the FSM edge, applies mutate and saves.
// mutate runs before the state change is committed; an error leaves the
// stored session untouched. Steps on one session are serialised in-process,
// and the versioned Save rejects a copy another instance already moved.
// The contact step claims the session with a save before creating the lead,
// so of two concurrent submits only one reaches mutate.
func (s *Service) transition(ctx context.Context, id string, ev Event, mutate func(*Session) error) (Session, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	fields := map[string]any{
		"session_id": id,
		"request_id": middleware.RequestIDFrom(ctx),
		"event":      ev,
		"from":       sess.State,
	}

	to, err := Next(sess.State, ev)
	if err != nil {
		metrics.IncIntakeTransition(string(ev), false)
		telemetry.Warn("intake.transition.invalid", fields)
		return Session{}, err
	}
	if sess.ClaimedUntil != nil && s.now().Before(*sess.ClaimedUntil) {
		metrics.IncIntakeTransition(string(to), false)
		telemetry.Warn("intake.transition.claimed", fields)
		return Session{}, ErrSessionConflict
	}
	var unclaimed *Session
	if ev == EventSubmitContact {
		if err := s.claim(ctx, &sess); err != nil {
			metrics.IncIntakeTransition(string(to), false)
			fields["error"] = err.Error()
			telemetry.Warn("intake.transition.claim_failed", fields)
			return Session{}, err
		}
		held := sess
		unclaimed = &held
	}
	if err := mutate(&sess); err != nil {
		metrics.IncIntakeTransition(string(to), false)
		fields["to"] = to
		fields["error"] = err.Error()
		telemetry.Warn("intake.transition.rejected", fields)
		if unclaimed != nil {
			s.release(ctx, *unclaimed)
		}
		return Session{}, err
	}

	sess.ClaimedUntil = nil
	sess.State = to
	sess.UpdatedAt = s.now()
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	sess.Version++
	metrics.IncIntakeTransition(string(to), true)
	fields["to"] = to
	telemetry.Info("intake.transition", fields)
	return sess, nil
}

// claim marks the session as being submitted and saves it, so another
// process holding the same or a later read fails instead of creating a
// second lead.
func (s *Service) claim(ctx context.Context, sess *Session) error {
	until := s.now().Add(contactClaimTTL)
	sess.ClaimedUntil = &until
	if err := s.Sessions.Save(ctx, *sess); err != nil {
		return fmt.Errorf("claim session: %w", err)
	}
	sess.Version++
	return nil
}

func (s *Service) release(ctx context.Context, sess Session) {
	sess.ClaimedUntil = nil
	if err := s.Sessions.Save(ctx, sess); err != nil {
		telemetry.Warn("intake.claim.release_failed", map[string]any{"session_id": sess.ID, "error": err.Error()})
	}
}

func (s *Service) enqueue(ctx context.Context, leadID, requestID string) {
	if s.Queue == nil {
		telemetry.Warn("intake.notify.disabled", map[string]any{"lead_id": leadID})
		return
	}
	if err := s.Queue.Send(ctx, queue.NewLeadMessage(leadID, requestID, s.now())); err != nil {
		// The lead stays stored and listed for admins.
		telemetry.Error("intake.notify.enqueue_failed", map[string]any{
			"lead_id": leadID,
			"error":   err.Error(),
		})
		return
	}
	telemetry.Info("intake.notify.enqueued", map[string]any{"lead_id": leadID, "request_id": requestID})
}

func (s *Service) dropPhotos(ctx context.Context, keys []string) {
	for _, k := range keys {
		if err := s.Photos.Delete(ctx, k); err != nil && !errors.Is(err, object.ErrNotFound) {
			telemetry.Warn("intake.photo.delete_failed", map[string]any{"key": k, "error": err.Error()})
		}
	}
}

func checkPhoto(data []byte) (string, error) {
	if len(data) > MaxPhotoBytes {
		return "", ErrPhotoTooLarge
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	mime := http.DetectContentType(head)
	if _, ok := photoExtensions[mime]; !ok {
		return "", fmt.Errorf("%w: got %s", ErrUnsupportedPhoto, mime)
	}
	return mime, nil
}

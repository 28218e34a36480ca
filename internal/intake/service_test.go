package intake

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mirror-backend/internal/analysis"
	"mirror-backend/internal/diagnosis"
	"mirror-backend/internal/leads"
	"mirror-backend/internal/queue"
	"mirror-backend/internal/shared/storage/object"
	"mirror-backend/internal/shared/storage/object/local"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type fixture struct {
	svc    *Service
	leads  *leads.Service
	queue  *queue.Recorder
	photos *local.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	leadSvc := leads.NewService(leads.NewMemoryRepo())
	rec := &queue.Recorder{}
	photos := local.New(t.TempDir())
	svc := &Service{
		Sessions:      NewMemoryStore(time.Hour),
		Analyzer:      &analysis.Service{DefaultLocale: diagnosis.LocaleEN},
		Leads:         leadSvc,
		Photos:        photos,
		Queue:         rec,
		DefaultLocale: diagnosis.LocaleEN,
	}
	return fixture{svc: svc, leads: leadSvc, queue: rec, photos: photos}
}

func validIntake() IntakeForm {
	return IntakeForm{
		Concerns: []string{"sagging", "wrinkles"},
		Questionnaire: diagnosis.Input{
			Age:          40,
			SkinType:     diagnosis.SkinDry,
			SaggingLevel: 5,
			WrinkleLevel: 3,
			Budget:       diagnosis.BudgetHigh,
			DowntimeOK:   true,
		},
		Front: &Upload{FileName: "front.png", Data: pngHeader},
	}
}

func TestWizardHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Start(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, StateConsent, sess.State)
	assert.Equal(t, diagnosis.LocaleEN, sess.Locale)

	sess, err = f.svc.Consent(ctx, sess.ID, ConsentForm{PrivacyConsent: true, DisclaimerAccepted: true})
	require.NoError(t, err)
	assert.Equal(t, StateIntake, sess.State)
	require.NotNil(t, sess.Consent.PrivacyAcceptedAt)

	sess, err = f.svc.SubmitIntake(ctx, sess.ID, validIntake())
	require.NoError(t, err)
	assert.Equal(t, StateContact, sess.State)
	require.NotNil(t, sess.Report)
	assert.NotEmpty(t, sess.Report.Narrative)
	require.Len(t, sess.PhotoKeys, 1)

	rc, err := f.photos.Open(ctx, sess.PhotoKeys[0])
	require.NoError(t, err)
	_ = rc.Close()

	sess, err = f.svc.SubmitContact(ctx, sess.ID, ContactForm{Name: "Park", Phone: "010-2222-3333"}, "req-9")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmation, sess.State)
	require.NotEmpty(t, sess.LeadID)

	lead, err := f.leads.Get(ctx, sess.LeadID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, lead.SessionID)
	assert.Equal(t, []string{"sagging", "wrinkles"}, lead.Concerns)
	assert.Equal(t, sess.Report.Result.Rule, lead.Rule)
	assert.Equal(t, sess.PhotoKeys, lead.PhotoKeys)

	sent := f.queue.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, lead.ID, sent[0].LeadID)
	assert.Equal(t, "req-9", sent[0].RequestID)

	_, err = f.svc.Back(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConsentRequiresBothAcknowledgements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.svc.Start(ctx, diagnosis.LocaleKO)

	_, err := f.svc.Consent(ctx, sess.ID, ConsentForm{PrivacyConsent: true})
	var gerr *GuardError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "disclaimerAccepted", gerr.Fields[0].Field)

	got, _ := f.svc.Get(ctx, sess.ID)
	assert.Equal(t, StateConsent, got.State)
}

func TestIntakeGuards(t *testing.T) {
	cases := map[string]func(*IntakeForm){
		"missing front photo": func(f *IntakeForm) { f.Front = nil },
		"empty front photo":   func(f *IntakeForm) { f.Front = &Upload{} },
		"no concerns":         func(f *IntakeForm) { f.Concerns = nil },
		"unknown concern":     func(f *IntakeForm) { f.Concerns = []string{"hair"} },
		"bad questionnaire":   func(f *IntakeForm) { f.Questionnaire.SaggingLevel = 9 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			sess, _ := f.svc.Start(ctx, "")
			_, err := f.svc.Consent(ctx, sess.ID, ConsentForm{PrivacyConsent: true, DisclaimerAccepted: true})
			require.NoError(t, err)

			form := validIntake()
			mutate(&form)
			_, err = f.svc.SubmitIntake(ctx, sess.ID, form)
			assert.ErrorIs(t, err, ErrGuardFailed)

			got, _ := f.svc.Get(ctx, sess.ID)
			assert.Equal(t, StateIntake, got.State)
		})
	}
}

func TestIntakeRejectsNonImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.svc.Start(ctx, "")
	_, _ = f.svc.Consent(ctx, sess.ID, ConsentForm{PrivacyConsent: true, DisclaimerAccepted: true})

	form := validIntake()
	form.Front = &Upload{FileName: "notes.txt", Data: []byte("hello world, not a photo")}
	_, err := f.svc.SubmitIntake(ctx, sess.ID, form)
	assert.ErrorIs(t, err, ErrUnsupportedPhoto)

	form.Front = &Upload{Data: append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, MaxPhotoBytes)...)}
	_, err = f.svc.SubmitIntake(ctx, sess.ID, form)
	assert.ErrorIs(t, err, ErrPhotoTooLarge)
}

func TestBackKeepsAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.svc.Start(ctx, "")
	_, _ = f.svc.Consent(ctx, sess.ID, ConsentForm{PrivacyConsent: true, DisclaimerAccepted: true})
	_, err := f.svc.SubmitIntake(ctx, sess.ID, validIntake())
	require.NoError(t, err)

	back, err := f.svc.Back(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StateIntake, back.State)
	assert.NotNil(t, back.Report)
	assert.Len(t, back.PhotoKeys, 1)

	_, err = f.svc.SubmitContact(ctx, sess.ID, ContactForm{Name: "Park", Phone: "010-2222-3333"}, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestContactWithoutQueueStillConfirms(t *testing.T) {
	f := newFixture(t)
	f.svc.Queue = nil
	ctx := context.Background()
	sess, _ := f.svc.Start(ctx, "")
	_, _ = f.svc.Consent(ctx, sess.ID, ConsentForm{PrivacyConsent: true, DisclaimerAccepted: true})
	_, _ = f.svc.SubmitIntake(ctx, sess.ID, validIntake())

	got, err := f.svc.SubmitContact(ctx, sess.ID, ContactForm{Name: "Park", Phone: "010-2222-3333"}, "")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmation, got.State)
}

func TestContactEnqueueFailureStillConfirms(t *testing.T) {
	f := newFixture(t)
	f.queue.Err = errors.New("queue down")
	ctx := context.Background()
	sess, _ := f.svc.Start(ctx, "")
	_, _ = f.svc.Consent(ctx, sess.ID, ConsentForm{PrivacyConsent: true, DisclaimerAccepted: true})
	_, _ = f.svc.SubmitIntake(ctx, sess.ID, validIntake())

	got, err := f.svc.SubmitContact(ctx, sess.ID, ContactForm{Name: "Park", Phone: "010-2222-3333"}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, got.LeadID)
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Consent(context.Background(), "nope", ConsentForm{PrivacyConsent: true, DisclaimerAccepted: true})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// slowLeads holds each Create until release is closed, after signalling
// entered.
type slowLeads struct {
	next    LeadCreator
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *slowLeads) Create(ctx context.Context, lead leads.Lead) (leads.Lead, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.next.Create(ctx, lead)
}

func contactReady(t *testing.T, f fixture) Session {
	t.Helper()
	ctx := context.Background()
	sess, err := f.svc.Start(ctx, "")
	require.NoError(t, err)
	_, err = f.svc.Consent(ctx, sess.ID, ConsentForm{PrivacyConsent: true, DisclaimerAccepted: true})
	require.NoError(t, err)
	sess, err = f.svc.SubmitIntake(ctx, sess.ID, validIntake())
	require.NoError(t, err)
	return sess
}

func TestDoubleSubmitCreatesOneLead(t *testing.T) {
	f := newFixture(t)
	sess := contactReady(t, f)
	slow := &slowLeads{next: f.leads, entered: make(chan struct{}), release: make(chan struct{})}
	f.svc.Leads = slow
	form := ContactForm{Name: "Kim", Phone: "010-1234-5678"}

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.svc.SubmitContact(context.Background(), sess.ID, form, "")
			errs <- err
		}()
	}
	<-slow.entered
	time.Sleep(20 * time.Millisecond)
	close(slow.release)

	var ok, rejected int
	for i := 0; i < 2; i++ {
		if err := <-errs; err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrInvalidTransition)
			rejected++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)

	list, err := f.leads.List(context.Background(), leads.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Len(t, f.queue.Sent(), 1)
	assert.Equal(t, 0, f.svc.locks.len())
}

func TestContactClaimBlocksOtherInstance(t *testing.T) {
	f := newFixture(t)
	sess := contactReady(t, f)
	slow := &slowLeads{next: f.leads, entered: make(chan struct{}), release: make(chan struct{})}
	f.svc.Leads = slow
	other := &Service{
		Sessions: f.svc.Sessions,
		Analyzer: f.svc.Analyzer,
		Leads:    f.leads,
		Photos:   f.photos,
		Queue:    f.queue,
	}
	form := ContactForm{Name: "Kim", Phone: "010-1234-5678"}

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.SubmitContact(context.Background(), sess.ID, form, "")
		done <- err
	}()
	<-slow.entered

	_, err := other.SubmitContact(context.Background(), sess.ID, form, "")
	assert.ErrorIs(t, err, ErrSessionConflict)
	_, err = other.Back(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrSessionConflict)

	close(slow.release)
	require.NoError(t, <-done)

	got, err := f.svc.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmation, got.State)
	assert.Nil(t, got.ClaimedUntil)
	list, err := f.leads.List(context.Background(), leads.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

type failingLeads struct{}

func (failingLeads) Create(context.Context, leads.Lead) (leads.Lead, error) {
	return leads.Lead{}, errors.New("db down")
}

func TestFailedContactReleasesClaim(t *testing.T) {
	f := newFixture(t)
	sess := contactReady(t, f)
	f.svc.Leads = failingLeads{}
	form := ContactForm{Name: "Kim", Phone: "010-1234-5678"}

	_, err := f.svc.SubmitContact(context.Background(), sess.ID, form, "")
	require.Error(t, err)

	f.svc.Leads = f.leads
	got, err := f.svc.SubmitContact(context.Background(), sess.ID, form, "")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmation, got.State)
}

// brokenSideStore fails the second save and records what it stored.
type brokenSideStore struct {
	object.ObjectStore
	saved []string
}

func (b *brokenSideStore) Save(ctx context.Context, ns, name string, r io.Reader) (object.Stored, error) {
	if len(b.saved) == 1 {
		return object.Stored{}, errors.New("disk full")
	}
	stored, err := b.ObjectStore.Save(ctx, ns, name, r)
	if err == nil {
		b.saved = append(b.saved, stored.Key)
	}
	return stored, err
}

func TestFailedSidePhotoDropsFrontPhoto(t *testing.T) {
	f := newFixture(t)
	store := &brokenSideStore{ObjectStore: f.photos}
	f.svc.Photos = store
	ctx := context.Background()
	sess, _ := f.svc.Start(ctx, "")
	_, err := f.svc.Consent(ctx, sess.ID, ConsentForm{PrivacyConsent: true, DisclaimerAccepted: true})
	require.NoError(t, err)

	form := validIntake()
	form.Side = &Upload{FileName: "side.png", Data: pngHeader}
	_, err = f.svc.SubmitIntake(ctx, sess.ID, form)
	require.Error(t, err)

	require.Len(t, store.saved, 1)
	_, err = f.photos.Open(ctx, store.saved[0])
	assert.ErrorIs(t, err, object.ErrNotFound)

	got, _ := f.svc.Get(ctx, sess.ID)
	assert.Equal(t, StateIntake, got.State)
}

package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"mirror-backend/internal/leads"
	"mirror-backend/internal/queue"
	"mirror-backend/internal/shared/metrics"
	"mirror-backend/internal/shared/telemetry"
)

// Outcome values reported for a processed message.
const (
	OutcomeNotified = "notified"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingLeadID indicates a message without a lead id.
type ErrMissingLeadID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingLeadID) Error() string { return "missing lead id" }

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	LeadID    string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process lead"
	}
	return "process lead: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether err can never succeed on redelivery.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		missing ErrMissingLeadID
	)
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.LeadID) == "" {
		return msg, meta, ErrMissingLeadID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// LeadStore is the part of the lead service the worker needs.
type LeadStore interface {
	Get(ctx context.Context, id string) (leads.Lead, error)
	MarkStatus(ctx context.Context, id string, status leads.Status) (leads.Lead, error)
}

// Notifier hands a new lead to the consultation desk.
type Notifier interface {
	Notify(ctx context.Context, lead leads.Lead) error
}

// LogNotifier writes the notification to the structured log.
type LogNotifier struct{}

// Notify logs the lead summary the desk needs for a callback.
func (LogNotifier) Notify(_ context.Context, lead leads.Lead) error {
	names := make([]string, 0, len(lead.Recommendations))
	for _, r := range lead.Recommendations {
		names = append(names, r.Name)
	}
	telemetry.Info("lead.notify", map[string]any{
		"lead_id":         lead.ID,
		"name":            lead.Name,
		"phone":           lead.Phone,
		"preferred_time":  lead.PreferredTime,
		"rule":            lead.Rule,
		"recommendations": names,
		"concerns":        lead.Concerns,
	})
	return nil
}

// Deps are the collaborators of ProcessLead.
type Deps struct {
	Leads    LeadStore
	Notifier Notifier
}

// ProcessLead notifies the desk about a new lead and marks it notified.
// Leads already past new, or no longer present, are acknowledged unchanged.
func ProcessLead(ctx context.Context, deps Deps, msg queue.Message) (string, error) {
	if deps.Leads == nil {
		return OutcomeFailed, errors.New("lead store not configured")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = LogNotifier{}
	}
	fields := map[string]any{"lead_id": msg.LeadID, "request_id": msg.RequestID}

	lead, err := deps.Leads.Get(ctx, msg.LeadID)
	if errors.Is(err, leads.ErrNotFound) {
		telemetry.Warn("worker.lead.not_found", fields)
		metrics.IncLeadProcessed(OutcomeSkipped)
		return OutcomeSkipped, nil
	}
	if err != nil {
		metrics.IncLeadProcessed(OutcomeFailed)
		return OutcomeFailed, ErrProcess{LeadID: msg.LeadID, RequestID: msg.RequestID, Err: err}
	}
	if lead.Status != leads.StatusNew {
		fields["status"] = lead.Status
		telemetry.Info("worker.lead.already_handled", fields)
		metrics.IncLeadProcessed(OutcomeSkipped)
		return OutcomeSkipped, nil
	}

	if err := notifier.Notify(ctx, lead); err != nil {
		metrics.IncLeadProcessed(OutcomeFailed)
		return OutcomeFailed, ErrProcess{LeadID: msg.LeadID, RequestID: msg.RequestID, Err: err}
	}
	if _, err := deps.Leads.MarkStatus(ctx, lead.ID, leads.StatusNotified); err != nil {
		metrics.IncLeadProcessed(OutcomeFailed)
		return OutcomeFailed, ErrProcess{LeadID: msg.LeadID, RequestID: msg.RequestID, Err: err}
	}
	metrics.IncLeadProcessed(OutcomeNotified)
	return OutcomeNotified, nil
}

// HandleMessage parses a raw payload and processes it.
func HandleMessage(ctx context.Context, deps Deps, body string) (string, error) {
	msg, _, err := ParseMessage(body)
	if err != nil {
		return OutcomeFailed, err
	}
	return ProcessLead(ctx, deps, msg)
}

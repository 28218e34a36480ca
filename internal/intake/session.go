package intake

import (
	"context"
	"errors"
	"time"

	"mirror-backend/internal/analysis"
	"mirror-backend/internal/diagnosis"
)

var (
	// ErrSessionNotFound is returned for unknown or expired sessions.
	ErrSessionNotFound = errors.New("intake session not found")
	// ErrSessionConflict is returned by Save when the stored session moved
	// on since it was read.
	ErrSessionConflict = errors.New("intake session changed concurrently")
)

// Consent records when each acknowledgement was given.
type Consent struct {
	PrivacyAcceptedAt    *time.Time `json:"privacyAcceptedAt,omitempty"`
	DisclaimerAcceptedAt *time.Time `json:"disclaimerAcceptedAt,omitempty"`
}

// Session is the persisted wizard state of one visitor.
type Session struct {
	ID        string           `json:"id"`
	State     State            `json:"state"`
	Locale    diagnosis.Locale `json:"locale"`
	Consent   Consent          `json:"consent"`
	Concerns  []string         `json:"concerns"`
	Input     *diagnosis.Input `json:"input,omitempty"`
	PhotoKeys []string         `json:"photoKeys"`
	Report    *analysis.Report `json:"report,omitempty"`
	LeadID    string           `json:"leadId,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	// ClaimedUntil is set while a contact submission is creating the lead.
	ClaimedUntil *time.Time `json:"claimedUntil,omitempty"`
	// Version counts saves. Save only succeeds against the version that
	// was read.
	Version int `json:"version"`
}

// SessionStore persists sessions between wizard steps.
type SessionStore interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	// Save replaces the stored session if its version still equals
	// s.Version and stores it as s.Version+1. A stale copy gets
	// ErrSessionConflict.
	Save(ctx context.Context, s Session) error
}

package leads

import (
	"errors"
	"time"

	"mirror-backend/internal/diagnosis"
)

// Status is the consultation-desk lifecycle of a lead.
type Status string

const (
	StatusNew       Status = "new"
	StatusNotified  Status = "notified"
	StatusContacted Status = "contacted"
	StatusClosed    Status = "closed"
)

var (
	ErrNotFound      = errors.New("lead not found")
	ErrInvalidStatus = errors.New("invalid lead status")
	ErrInvalidLead   = errors.New("invalid lead")
)

// ParseStatus validates a status string.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusNew, StatusNotified, StatusContacted, StatusClosed:
		return s, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Lead is one consultation request left by a customer.
type Lead struct {
	ID              string                     `json:"id"`
	SessionID       string                     `json:"sessionId,omitempty"`
	Name            string                     `json:"name"`
	Phone           string                     `json:"phone"`
	PreferredTime   string                     `json:"preferredTime,omitempty"`
	MarketingOptIn  bool                       `json:"marketingOptIn"`
	Locale          diagnosis.Locale           `json:"locale"`
	Concerns        []string                   `json:"concerns"`
	Questionnaire   diagnosis.Input            `json:"questionnaire"`
	Rule            diagnosis.RuleID           `json:"rule"`
	Recommendations []diagnosis.Recommendation `json:"recommendations"`
	Logic           string                     `json:"logic"`
	Narrative       string                     `json:"narrative"`
	NarrativeSource string                     `json:"narrativeSource"`
	PromptHash      string                     `json:"promptHash,omitempty"`
	PhotoKeys       []string                   `json:"photoKeys"`
	Status          Status                     `json:"status"`
	CreatedAt       time.Time                  `json:"createdAt"`
	UpdatedAt       time.Time                  `json:"updatedAt"`
}

// ListOptions pages through leads newest first, ties broken by descending
// ID. An empty Status matches all. After, when set, starts the page strictly
// past that position so pages stay stable while leads are added.
type ListOptions struct {
	Limit  int
	Offset int
	Status Status
	After  *Cursor
}

// Cursor is a position in the lead order.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorOf returns the position of l.
func CursorOf(l Lead) *Cursor {
	return &Cursor{CreatedAt: l.CreatedAt, ID: l.ID}
}

// newer reports whether a sorts before b.
func newer(a, b Lead) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (o ListOptions) normalized() ListOptions {
	if o.Limit <= 0 || o.Limit > 500 {
		o.Limit = 50
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

func (o ListOptions) matches(l Lead) bool {
	if o.Status != "" && l.Status != o.Status {
		return false
	}
	return o.After == nil || newer(Lead{CreatedAt: o.After.CreatedAt, ID: o.After.ID}, l)
}

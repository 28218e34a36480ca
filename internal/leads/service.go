package leads

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"mirror-backend/internal/shared/metrics"
	"mirror-backend/internal/shared/telemetry"
)

// Service contains business logic for leads.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Create assigns an ID and timestamps and stores the lead with status new.
func (s *Service) Create(ctx context.Context, lead Lead) (Lead, error) {
	lead.Name = strings.TrimSpace(lead.Name)
	lead.Phone = strings.TrimSpace(lead.Phone)
	if lead.Name == "" || lead.Phone == "" {
		return Lead{}, fmt.Errorf("%w: name and phone are required", ErrInvalidLead)
	}
	now := s.now()
	lead.ID = uuid.NewString()
	lead.Status = StatusNew
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.Concerns == nil {
		lead.Concerns = []string{}
	}
	if lead.PhotoKeys == nil {
		lead.PhotoKeys = []string{}
	}

	if err := s.Repo.Create(ctx, lead); err != nil {
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}
	metrics.IncLeadCreated()
	telemetry.Info("lead.created", map[string]any{
		"lead_id":    lead.ID,
		"session_id": lead.SessionID,
		"rule":       lead.Rule,
	})
	return lead, nil
}

// Get returns a lead by ID.
func (s *Service) Get(ctx context.Context, id string) (Lead, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Lead{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns a page of leads newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Lead, error) {
	return s.Repo.List(ctx, opts)
}

// MarkStatus moves a lead to status.
func (s *Service) MarkStatus(ctx context.Context, id string, status Status) (Lead, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return Lead{}, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return Lead{}, ErrNotFound
	}
	lead, err := s.Repo.UpdateStatus(ctx, id, status, s.now())
	if err != nil {
		return Lead{}, err
	}
	telemetry.Info("lead.status_changed", map[string]any{"lead_id": id, "status": status})
	return lead, nil
}

// CSVHeader is the column order of ExportCSV.
var CSVHeader = []string{
	"id", "created_at", "status", "name", "phone", "concerns",
	"age", "skin_type", "sagging_level", "wrinkle_level", "budget", "downtime_ok",
	"rule", "recommendations",
}

// ExportCSV writes every matching lead as CSV, newest first.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, status Status) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	const batch = 200
	var after *Cursor
	for {
		page, err := s.Repo.List(ctx, ListOptions{Limit: batch, Status: status, After: after})
		if err != nil {
			return fmt.Errorf("export leads: %w", err)
		}
		for _, l := range page {
			if err := cw.Write(csvRecord(l)); err != nil {
				return err
			}
		}
		if len(page) < batch {
			break
		}
		after = CursorOf(page[len(page)-1])
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV writes the given leads as CSV in order.
func WriteCSV(w io.Writer, leads []Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, l := range leads {
		if err := cw.Write(csvRecord(l)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRecord(l Lead) []string {
	names := make([]string, 0, len(l.Recommendations))
	for _, r := range l.Recommendations {
		names = append(names, r.Name)
	}
	q := l.Questionnaire
	return []string{
		l.ID,
		l.CreatedAt.UTC().Format(time.RFC3339),
		string(l.Status),
		l.Name,
		l.Phone,
		strings.Join(l.Concerns, "; "),
		strconv.Itoa(q.Age),
		string(q.SkinType),
		strconv.Itoa(q.SaggingLevel),
		strconv.Itoa(q.WrinkleLevel),
		string(q.Budget),
		strconv.FormatBool(q.DowntimeOK),
		string(l.Rule),
		strings.Join(names, "; "),
	}
}

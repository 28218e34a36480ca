package leads

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mirror-backend/internal/diagnosis"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const leadColumns = `id, session_id, name, phone, preferred_time, marketing_opt_in, locale,
	concerns, questionnaire, rule, recommendations, logic, narrative, narrative_source,
	prompt_hash, photo_keys, status, created_at, updated_at`

// Create inserts a new lead.
func (r *PGRepo) Create(ctx context.Context, lead Lead) error {
	concerns, err := marshalJSONB(nonNil(lead.Concerns))
	if err != nil {
		return err
	}
	questionnaire, err := marshalJSONB(lead.Questionnaire)
	if err != nil {
		return err
	}
	recs := lead.Recommendations
	if recs == nil {
		recs = []diagnosis.Recommendation{}
	}
	recommendations, err := marshalJSONB(recs)
	if err != nil {
		return err
	}
	photoKeys, err := marshalJSONB(nonNil(lead.PhotoKeys))
	if err != nil {
		return err
	}

	const query = `
INSERT INTO leads (` + leadColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err = r.DB.ExecContext(ctx, query,
		lead.ID,
		lead.SessionID,
		lead.Name,
		lead.Phone,
		lead.PreferredTime,
		lead.MarketingOptIn,
		string(lead.Locale),
		concerns,
		questionnaire,
		string(lead.Rule),
		recommendations,
		lead.Logic,
		lead.Narrative,
		lead.NarrativeSource,
		lead.PromptHash,
		photoKeys,
		string(lead.Status),
		lead.CreatedAt,
		lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// GetByID loads a lead.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Lead, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// List returns leads newest first.
func (r *PGRepo) List(ctx context.Context, opts ListOptions) ([]Lead, error) {
	opts = opts.normalized()
	query := `SELECT ` + leadColumns + ` FROM leads`
	args := []any{}
	where := []string{}
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		where = append(where, fmt.Sprintf(`status = $%d`, len(args)))
	}
	if opts.After != nil {
		args = append(args, opts.After.CreatedAt, opts.After.ID)
		where = append(where, fmt.Sprintf(`(created_at, id) < ($%d, $%d)`, len(args)-1, len(args)))
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	out := []Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}

// UpdateStatus sets the status and returns the updated lead.
func (r *PGRepo) UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (Lead, error) {
	row := r.DB.QueryRowContext(ctx,
		`UPDATE leads SET status = $2, updated_at = $3 WHERE id = $1 RETURNING `+leadColumns,
		id, string(status), at)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (Lead, error) {
	var (
		lead                                                Lead
		locale, rule, status                                string
		concerns, questionnaire, recommendations, photoKeys []byte
	)
	err := row.Scan(
		&lead.ID,
		&lead.SessionID,
		&lead.Name,
		&lead.Phone,
		&lead.PreferredTime,
		&lead.MarketingOptIn,
		&locale,
		&concerns,
		&questionnaire,
		&rule,
		&recommendations,
		&lead.Logic,
		&lead.Narrative,
		&lead.NarrativeSource,
		&lead.PromptHash,
		&photoKeys,
		&status,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	lead.Locale = diagnosis.Locale(locale)
	lead.Rule = diagnosis.RuleID(rule)
	lead.Status = Status(status)
	if err := unmarshalJSONB(concerns, &lead.Concerns); err != nil {
		return Lead{}, err
	}
	if err := unmarshalJSONB(questionnaire, &lead.Questionnaire); err != nil {
		return Lead{}, err
	}
	if err := unmarshalJSONB(recommendations, &lead.Recommendations); err != nil {
		return Lead{}, err
	}
	if err := unmarshalJSONB(photoKeys, &lead.PhotoKeys); err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func marshalJSONB(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return b, nil
}

func unmarshalJSONB(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal jsonb: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ Repo = (*PGRepo)(nil)

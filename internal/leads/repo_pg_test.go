package leads

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var pgColumns = []string{
	"id", "session_id", "name", "phone", "preferred_time", "marketing_opt_in", "locale",
	"concerns", "questionnaire", "rule", "recommendations", "logic", "narrative", "narrative_source",
	"prompt_hash", "photo_keys", "status", "created_at", "updated_at",
}

func leadRow(t *testing.T, l Lead) []driver.Value {
	t.Helper()
	mustJSON := func(v any) []byte {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return b
	}
	return []driver.Value{
		l.ID, l.SessionID, l.Name, l.Phone, l.PreferredTime, l.MarketingOptIn, string(l.Locale),
		mustJSON(l.Concerns), mustJSON(l.Questionnaire), string(l.Rule), mustJSON(l.Recommendations),
		l.Logic, l.Narrative, l.NarrativeSource, l.PromptHash, mustJSON(l.PhotoKeys),
		string(l.Status), l.CreatedAt, l.UpdatedAt,
	}
}

func newMock(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreate(t *testing.T) {
	repo, mock := newMock(t)
	lead := sampleLead("6f1f7a4e-9a51-4c38-9d64-0d3f3c1f0a11", time.Now().UTC())

	mock.ExpectExec("INSERT INTO leads").
		WithArgs(
			lead.ID,
			lead.SessionID,
			lead.Name,
			lead.Phone,
			lead.PreferredTime,
			lead.MarketingOptIn,
			"ko",
			sqlmock.AnyArg(), // concerns
			sqlmock.AnyArg(), // questionnaire
			"severe_sagging",
			sqlmock.AnyArg(), // recommendations
			lead.Logic,
			lead.Narrative,
			lead.NarrativeSource,
			lead.PromptHash,
			sqlmock.AnyArg(), // photo_keys
			"new",
			lead.CreatedAt,
			lead.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), lead); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByID(t *testing.T) {
	repo, mock := newMock(t)
	lead := sampleLead("6f1f7a4e-9a51-4c38-9d64-0d3f3c1f0a11", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	mock.ExpectQuery(`SELECT (.+) FROM leads WHERE id = \$1`).
		WithArgs(lead.ID).
		WillReturnRows(sqlmock.NewRows(pgColumns).AddRow(leadRow(t, lead)...))

	got, err := repo.GetByID(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != lead.Name || got.Questionnaire != lead.Questionnaire {
		t.Fatalf("unexpected lead %+v", got)
	}
	if len(got.Recommendations) != 2 || !got.Recommendations[0].EnergyBased {
		t.Fatalf("recommendations not decoded: %+v", got.Recommendations)
	}
	if len(got.PhotoKeys) != 1 || got.Concerns[1] != "wrinkles" {
		t.Fatalf("jsonb arrays not decoded: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`SELECT (.+) FROM leads WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoListWithStatus(t *testing.T) {
	repo, mock := newMock(t)
	lead := sampleLead("6f1f7a4e-9a51-4c38-9d64-0d3f3c1f0a11", time.Now().UTC())

	mock.ExpectQuery(`SELECT (.+) FROM leads WHERE status = \$1 ORDER BY created_at DESC, id DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("new", 10, 20).
		WillReturnRows(sqlmock.NewRows(pgColumns).AddRow(leadRow(t, lead)...))

	got, err := repo.List(context.Background(), ListOptions{Limit: 10, Offset: 20, Status: StatusNew})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 lead, got %d", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateStatus(t *testing.T) {
	repo, mock := newMock(t)
	at := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	lead := sampleLead("6f1f7a4e-9a51-4c38-9d64-0d3f3c1f0a11", at.Add(-time.Hour))
	lead.Status = StatusNotified
	lead.UpdatedAt = at

	mock.ExpectQuery(`UPDATE leads SET status = \$2, updated_at = \$3 WHERE id = \$1 RETURNING`).
		WithArgs(lead.ID, "notified", at).
		WillReturnRows(sqlmock.NewRows(pgColumns).AddRow(leadRow(t, lead)...))

	got, err := repo.UpdateStatus(context.Background(), lead.ID, StatusNotified, at)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got.Status != StatusNotified {
		t.Fatalf("expected notified, got %s", got.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListAfterCursor(t *testing.T) {
	repo, mock := newMock(t)
	at := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	lead := sampleLead("6f1f7a4e-9a51-4c38-9d64-0d3f3c1f0a11", at)

	mock.ExpectQuery(`SELECT (.+) FROM leads WHERE status = \$1 AND \(created_at, id\) < \(\$2, \$3\) ORDER BY created_at DESC, id DESC LIMIT \$4 OFFSET \$5`).
		WithArgs("new", at, "7a000000-0000-4000-8000-000000000000", 200, 0).
		WillReturnRows(sqlmock.NewRows(pgColumns).AddRow(leadRow(t, lead)...))

	after := &Cursor{CreatedAt: at, ID: "7a000000-0000-4000-8000-000000000000"}
	got, err := repo.List(context.Background(), ListOptions{Limit: 200, Status: StatusNew, After: after})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 lead, got %d", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

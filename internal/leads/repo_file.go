package leads

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mirror-backend/internal/shared/telemetry"
)

// FileRepo persists leads as JSON lines. Every write appends a full record;
// the last record for an ID wins on read.
type FileRepo struct {
	path string
	mu   sync.Mutex
}

// NewFileRepo creates the parent directory of path if needed.
func NewFileRepo(path string) (*FileRepo, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir leads dir: %w", err)
		}
	}
	return &FileRepo{path: path}, nil
}

func (r *FileRepo) Create(ctx context.Context, lead Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendLocked(lead)
}

func (r *FileRepo) GetByID(ctx context.Context, id string) (Lead, error) {
	if err := ctx.Err(); err != nil {
		return Lead{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.loadLocked()
	if err != nil {
		return Lead{}, err
	}
	lead, ok := all[id]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return lead, nil
}

func (r *FileRepo) List(ctx context.Context, opts ListOptions) ([]Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	all, err := r.loadLocked()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]Lead, 0, len(all))
	for _, l := range all {
		out = append(out, l)
	}
	return page(out, opts), nil
}

func (r *FileRepo) UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (Lead, error) {
	if err := ctx.Err(); err != nil {
		return Lead{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.loadLocked()
	if err != nil {
		return Lead{}, err
	}
	lead, ok := all[id]
	if !ok {
		return Lead{}, ErrNotFound
	}
	lead.Status = status
	lead.UpdatedAt = at
	if err := r.appendLocked(lead); err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func (r *FileRepo) appendLocked(lead Lead) error {
	line, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("marshal lead: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open leads file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append lead: %w", err)
	}
	return f.Sync()
}

func (r *FileRepo) loadLocked() (map[string]Lead, error) {
	f, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Lead{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open leads file: %w", err)
	}
	defer f.Close()
	return ReadJSONL(f, r.path)
}

// ReadJSONL folds a JSON-lines stream into the latest record per lead ID.
// Malformed lines are skipped and logged.
func ReadJSONL(rd io.Reader, source string) (map[string]Lead, error) {
	out := make(map[string]Lead)
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64<<10), 4<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var lead Lead
		if err := json.Unmarshal(raw, &lead); err != nil || lead.ID == "" {
			telemetry.Warn("leads.file_bad_line", map[string]any{"file": source, "line": lineNo})
			continue
		}
		out[lead.ID] = lead
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan leads file: %w", err)
	}
	return out, nil
}

var _ Repo = (*FileRepo)(nil)

package leads

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores leads in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Lead
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Lead)}
}

func (r *MemoryRepo) Create(ctx context.Context, lead Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[lead.ID] = lead
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Lead, error) {
	if err := ctx.Err(); err != nil {
		return Lead{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	lead, ok := r.byID[id]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return lead, nil
}

func (r *MemoryRepo) List(ctx context.Context, opts ListOptions) ([]Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	all := make([]Lead, 0, len(r.byID))
	for _, l := range r.byID {
		all = append(all, l)
	}
	r.mu.RUnlock()
	return page(all, opts), nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (Lead, error) {
	if err := ctx.Err(); err != nil {
		return Lead{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.byID[id]
	if !ok {
		return Lead{}, ErrNotFound
	}
	lead.Status = status
	lead.UpdatedAt = at
	r.byID[id] = lead
	return lead, nil
}

var _ Repo = (*MemoryRepo)(nil)

package leads

import (
	"context"
	"sort"
	"time"
)

// Repo defines persistence operations for leads.
type Repo interface {
	Create(ctx context.Context, lead Lead) error
	GetByID(ctx context.Context, id string) (Lead, error)
	List(ctx context.Context, opts ListOptions) ([]Lead, error)
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (Lead, error)
}

// page sorts newest first and applies the filter and window.
func page(all []Lead, opts ListOptions) []Lead {
	opts = opts.normalized()
	filtered := make([]Lead, 0, len(all))
	for _, l := range all {
		if opts.matches(l) {
			filtered = append(filtered, l)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return newer(filtered[i], filtered[j])
	})
	if opts.Offset >= len(filtered) {
		return []Lead{}
	}
	end := opts.Offset + opts.Limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[opts.Offset:end]
}

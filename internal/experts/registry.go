package experts

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound      = errors.New("provider not found")
	ErrInvalidRecord = errors.New("invalid provider record")
)

// Registry stores providers by id and remembers registration order.
// All writes hold the registry lock; reads return copies.
type Registry struct {
	mu    sync.RWMutex
	order []string
	items map[string]*Provider
	now   func() time.Time
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		items: make(map[string]*Provider),
		now:   time.Now,
	}
}

// SetNowFunc overrides the timestamp source.
func (r *Registry) SetNowFunc(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	r.now = now
}

// Register upserts a provider. An existing id keeps its registration position,
// creation time and never loses recorded calls.
func (r *Registry) Register(p Provider) (Provider, error) {
	p.ID = strings.TrimSpace(p.ID)
	p.Spec = p.Spec.Normalize()
	if p.Status == "" {
		p.Status = StatusActive
	}
	if err := Validate(p); err != nil {
		return Provider{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	record := p.Clone()
	if existing, ok := r.items[p.ID]; ok {
		if !existing.CreatedAt.IsZero() {
			record.CreatedAt = existing.CreatedAt
		}
		record.Performance.TotalCalls = max(record.Performance.TotalCalls, existing.Performance.TotalCalls)
	} else {
		r.order = append(r.order, p.ID)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	r.items[p.ID] = &record
	return record.Clone(), nil
}

// Get returns a provider by id.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[strings.TrimSpace(id)]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p.Clone(), nil
}

// ListActive returns active providers in registration order.
func (r *Registry) ListActive() []Provider {
	return r.list(func(p *Provider) bool { return p.Status == StatusActive })
}

// List returns every provider in registration order.
func (r *Registry) List() []Provider {
	return r.list(nil)
}

func (r *Registry) list(keep func(*Provider) bool) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		p := r.items[id]
		if keep != nil && !keep(p) {
			continue
		}
		out = append(out, p.Clone())
	}
	return out
}

// Count reports how many providers are registered, regardless of status.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// IncrementCallCount bumps totalCalls by one and returns the updated record.
func (r *Registry) IncrementCallCount(id string) (Provider, error) {
	return r.mutate(id, func(p *Provider) error {
		p.Performance.TotalCalls++
		return nil
	})
}

// SetStatus moves a provider to status.
func (r *Registry) SetStatus(id string, status Status) (Provider, error) {
	if !status.Valid() {
		return Provider{}, fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, status)
	}
	return r.mutate(id, func(p *Provider) error {
		p.Status = status
		return nil
	})
}

func (r *Registry) mutate(id string, fn func(*Provider) error) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[strings.TrimSpace(id)]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := fn(p); err != nil {
		return Provider{}, err
	}
	p.UpdatedAt = r.now()
	return p.Clone(), nil
}

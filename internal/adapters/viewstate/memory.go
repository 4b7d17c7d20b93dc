package viewstate

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/birdboard/internal/domain/model"
)

type region struct {
	issued  uint64
	applied uint64
	visible *model.Dashboard
}

// Memory is an in-process Store. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	regions map[string]*region
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{regions: make(map[string]*region)}
}

func (m *Memory) Issue(_ context.Context, name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.regionLocked(name)
	r.issued++
	return r.issued
}

func (m *Memory) Revoke(_ context.Context, name string, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[name]
	if !ok || gen != r.issued || gen <= r.applied {
		return false
	}
	r.issued--
	return true
}

func (m *Memory) Apply(_ context.Context, name string, gen uint64, d model.Dashboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[name]
	if !ok || gen != r.issued || gen <= r.applied {
		return fmt.Errorf("%w: region %s generation %d", ErrStale, name, gen)
	}
	d.Generation = gen
	r.applied = gen
	r.visible = &d
	return nil
}

func (m *Memory) Latest(_ context.Context, name string) (model.Dashboard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.regions[name]
	if !ok || r.visible == nil {
		return model.Dashboard{}, fmt.Errorf("%w: region %s", ErrNotFound, name)
	}
	return *r.visible, nil
}

func (m *Memory) Current(_ context.Context, name string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.regions[name]; ok {
		return r.issued
	}
	return 0
}

// Regions returns the number of regions with at least one issued generation.
func (m *Memory) Regions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.regions)
}

func (m *Memory) regionLocked(name string) *region {
	r, ok := m.regions[name]
	if !ok {
		r = &region{}
		m.regions[name] = r
	}
	return r
}

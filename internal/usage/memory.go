package usage

import (
	"context"
	"sync"
)

type periodKey struct {
	organizationID string
	period         string
}

type periodCounts struct {
	used      int
	succeeded int
	failed    int
}

// MemoryBackend keeps counters in process. Used for local runs without a
// database and in tests.
type MemoryBackend struct {
	mu     sync.Mutex
	limits map[string]*int
	counts map[periodKey]*periodCounts
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		limits: make(map[string]*int),
		counts: make(map[periodKey]*periodCounts),
	}
}

// SetLimit assigns a photo limit to an organization. nil means unlimited.
func (m *MemoryBackend) SetLimit(organizationID string, limit *int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit == nil {
		delete(m.limits, organizationID)
		return
	}
	v := *limit
	m.limits[organizationID] = &v
}

func (m *MemoryBackend) entry(organizationID, period string) *periodCounts {
	k := periodKey{organizationID: organizationID, period: period}
	c, ok := m.counts[k]
	if !ok {
		c = &periodCounts{}
		m.counts[k] = c
	}
	return c
}

func (m *MemoryBackend) Reserve(_ context.Context, organizationID, period string, n int) (BackendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.entry(organizationID, period)
	limit := m.limits[organizationID]
	var limitCopy *int
	if limit != nil {
		v := *limit
		limitCopy = &v
	}
	if limit != nil && c.used+n > *limit {
		return BackendResult{Allowed: false, Used: c.used, Limit: limitCopy}, nil
	}
	c.used += n
	return BackendResult{Allowed: true, Used: c.used, Limit: limitCopy}, nil
}

func (m *MemoryBackend) Release(_ context.Context, organizationID, period string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.entry(organizationID, period)
	c.used -= n
	if c.used < 0 {
		c.used = 0
	}
	return nil
}

func (m *MemoryBackend) TrackUsage(_ context.Context, organizationID, period string, succeeded, failed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.entry(organizationID, period)
	c.succeeded += succeeded
	c.failed += failed
	return nil
}

// Snapshot returns the counters for a period.
func (m *MemoryBackend) Snapshot(organizationID, period string) (used, succeeded, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counts[periodKey{organizationID: organizationID, period: period}]; ok {
		return c.used, c.succeeded, c.failed
	}
	return 0, 0, 0
}

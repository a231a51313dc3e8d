package scheduler

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is a non-durable Store for tests and local runs without a
// database.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[Key]Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[Key]Job)}
}

func (m *MemoryStore) Upsert(_ context.Context, j Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.jobs[j.Key()]; ok {
		j.CreatedAt = prev.CreatedAt
	}
	m.jobs[j.Key()] = j
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key Key) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[key]
	delete(m.jobs, key)
	return ok, nil
}

func (m *MemoryStore) Due(_ context.Context, now time.Time, limit int) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Job
	for _, j := range m.jobs {
		if !j.FireAt.After(now) {
			out = append(out, j)
		}
	}
	sortJobs(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Claim(_ context.Context, j Job) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.jobs[j.Key()]
	if !ok || !cur.FireAt.Equal(j.FireAt) {
		return false, nil
	}
	delete(m.jobs, j.Key())
	return true, nil
}

func (m *MemoryStore) Next(_ context.Context) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next time.Time
	found := false
	for _, j := range m.jobs {
		if !found || j.FireAt.Before(next) {
			next = j.FireAt
			found = true
		}
	}
	return next, found, nil
}

func (m *MemoryStore) List(_ context.Context) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	sortJobs(out)
	return out, nil
}

func sortJobs(jobs []Job) {
	slices.SortFunc(jobs, func(a, b Job) int {
		if c := a.FireAt.Compare(b.FireAt); c != 0 {
			return c
		}
		if a.EventID != b.EventID {
			if a.EventID < b.EventID {
				return -1
			}
			return 1
		}
		switch {
		case a.CandidateID < b.CandidateID:
			return -1
		case a.CandidateID > b.CandidateID:
			return 1
		}
		return 0
	})
}

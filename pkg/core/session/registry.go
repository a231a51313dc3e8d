package session

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"golang.org/x/sync/singleflight"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrAlreadyExists = errors.New("session already exists")
)

const shardCount = 32

// HydrateFunc builds a session for an id the registry has never seen,
// typically from the voice gateway's call metadata.
type HydrateFunc func(ctx context.Context, id string) (*Session, error)

// Registry is a process-wide, sharded store of live sessions keyed by call id.
type Registry struct {
	shards [shardCount]shard
	group  singleflight.Group
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].sessions = make(map[string]*Session)
	}
	return r
}

func (r *Registry) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &r.shards[h.Sum32()%shardCount]
}

// Create inserts s under s.ID.
func (r *Registry) Create(s *Session) error {
	if s == nil || s.ID == "" {
		return errors.New("session id is required")
	}
	sh := r.shardFor(s.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.sessions[s.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, s.ID)
	}
	sh.sessions[s.ID] = s
	return nil
}

func (r *Registry) Get(id string) (*Session, error) {
	sh := r.shardFor(id)
	sh.mu.RLock()
	s, ok := sh.sessions[id]
	sh.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// GetOrHydrate returns the session for id, building it with hydrate when
// absent. Concurrent callers for the same id share one hydration.
func (r *Registry) GetOrHydrate(ctx context.Context, id string, hydrate HydrateFunc) (*Session, error) {
	if s, err := r.Get(id); err == nil {
		return s, nil
	}
	if hydrate == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		if s, err := r.Get(id); err == nil {
			return s, nil
		}
		s, err := hydrate(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("hydrate session %s: %w", id, err)
		}
		if s == nil || s.ID != id {
			return nil, fmt.Errorf("hydrate session %s: hydrated session has mismatched id", id)
		}
		if err := r.Create(s); err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				return r.Get(id)
			}
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Remove retires a session. It reports whether the id was present.
func (r *Registry) Remove(id string) bool {
	sh := r.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.sessions[id]; !ok {
		return false
	}
	delete(sh.sessions, id)
	return true
}

func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// Range calls fn for every session until fn returns false. Sessions added or
// removed during iteration may or may not be visited.
func (r *Registry) Range(fn func(*Session) bool) {
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		snapshot := make([]*Session, 0, len(sh.sessions))
		for _, s := range sh.sessions {
			snapshot = append(snapshot, s)
		}
		sh.mu.RUnlock()
		for _, s := range snapshot {
			if !fn(s) {
				return
			}
		}
	}
}

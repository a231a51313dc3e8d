package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

func newTestSession(id string) *Session {
	return New(id, types.Candidate{Profile: types.CandidateProfile{CandidateID: "cand-1", Name: "Asha"}}, "https://control.example/"+id, time.Now())
}

func TestRegistry_CreateGetRemove(t *testing.T) {
	r := NewRegistry()
	if r.Len() != 0 {
		t.Fatalf("initial len=%d, want 0", r.Len())
	}

	if err := r.Create(newTestSession("call-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Create(newTestSession("call-1")); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second Create err=%v, want ErrAlreadyExists", err)
	}

	s, err := r.Get("call-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.CandidateID != "cand-1" {
		t.Fatalf("candidate=%q, want cand-1", s.CandidateID)
	}

	if _, err := r.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) err=%v, want ErrNotFound", err)
	}

	if !r.Remove("call-1") {
		t.Fatalf("Remove returned false for present id")
	}
	if r.Remove("call-1") {
		t.Fatalf("Remove returned true for absent id")
	}
	if r.Len() != 0 {
		t.Fatalf("len=%d, want 0", r.Len())
	}
}

func TestRegistry_GetOrHydrate_SingleHydrationUnderConcurrency(t *testing.T) {
	r := NewRegistry()
	var calls atomic.Int64
	release := make(chan struct{})
	hydrate := func(ctx context.Context, id string) (*Session, error) {
		calls.Add(1)
		<-release
		return newTestSession(id), nil
	}

	const n = 16
	var wg sync.WaitGroup
	got := make([]*Session, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], errs[i] = r.GetOrHydrate(context.Background(), "call-7", hydrate)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("GetOrHydrate[%d]: %v", i, errs[i])
		}
		if got[i] != got[0] {
			t.Fatalf("GetOrHydrate[%d] returned a different session", i)
		}
	}
	if c := calls.Load(); c != 1 {
		t.Fatalf("hydrate calls=%d, want 1", c)
	}
	if r.Len() != 1 {
		t.Fatalf("len=%d, want 1", r.Len())
	}
}

func TestRegistry_GetOrHydrate_ExistingSkipsHydrate(t *testing.T) {
	r := NewRegistry()
	existing := newTestSession("call-2")
	if err := r.Create(existing); err != nil {
		t.Fatalf("Create: %v", err)
	}
	s, err := r.GetOrHydrate(context.Background(), "call-2", func(ctx context.Context, id string) (*Session, error) {
		t.Fatalf("hydrate must not be called for a known session")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("GetOrHydrate: %v", err)
	}
	if s != existing {
		t.Fatalf("expected the existing session")
	}
}

func TestRegistry_GetOrHydrate_ErrorNotCached(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("gateway down")
	_, err := r.GetOrHydrate(context.Background(), "call-3", func(ctx context.Context, id string) (*Session, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want wrapped gateway error", err)
	}
	if r.Len() != 0 {
		t.Fatalf("failed hydration must not insert, len=%d", r.Len())
	}
	if _, err := r.GetOrHydrate(context.Background(), "call-3", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("nil hydrate err=%v, want ErrNotFound", err)
	}
}

func TestRegistry_Range(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		if err := r.Create(newTestSession(id)); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}
	seen := map[string]bool{}
	r.Range(func(s *Session) bool {
		seen[s.ID] = true
		return true
	})
	if len(seen) != 3 {
		t.Fatalf("visited=%v, want 3 sessions", seen)
	}

	visited := 0
	r.Range(func(s *Session) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Fatalf("visited=%d after early stop, want 1", visited)
	}
}

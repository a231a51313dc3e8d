// Package memory is a process-local candidate repository for development
// runs and tests. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vango-go/vai-recruiter/pkg/core"
	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

type Repository struct {
	mu         sync.Mutex
	candidates map[string]types.Candidate
	order      []string
	bindings   map[string]types.CallBinding
}

func NewRepository() *Repository {
	return &Repository{
		candidates: make(map[string]types.Candidate),
		bindings:   make(map[string]types.CallBinding),
	}
}

// Put inserts or replaces a candidate.
func (r *Repository) Put(c types.Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.candidates[c.Profile.CandidateID]; !ok {
		r.order = append(r.order, c.Profile.CandidateID)
	}
	r.candidates[c.Profile.CandidateID] = c
}

func (r *Repository) GetCandidate(_ context.Context, candidateID string) (types.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[candidateID]
	if !ok {
		return types.Candidate{}, fmt.Errorf("%w: %s", core.ErrCandidateNotFound, candidateID)
	}
	return c, nil
}

func (r *Repository) UpdateCandidate(_ context.Context, u types.CandidateUpdate) error {
	if u.Empty() {
		return core.NewInvalidRequestError("no fields to update")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[u.CandidateID]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrCandidateNotFound, u.CandidateID)
	}
	if u.Transcript != nil {
		c.Transcript = *u.Transcript
	}
	if u.Evaluation != nil {
		ev := *u.Evaluation
		c.Evaluation = &ev
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.Cost != nil {
		cost := *u.Cost
		c.Cost = &cost
	}
	r.candidates[u.CandidateID] = c
	return nil
}

func (r *Repository) UpsertFromBooking(_ context.Context, b types.Booking) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := b.Status
	if status == "" {
		status = types.StatusScheduled
	}

	id := r.match(b)
	c, ok := r.candidates[id]
	if !ok {
		id = uuid.NewString()
		c.Profile.CandidateID = id
		r.order = append(r.order, id)
	}
	c.Profile.Name = b.Name
	c.Profile.Email = b.Email
	c.Profile.Phone = b.Phone
	c.Status = status
	if b.ScheduledAt != nil {
		at := *b.ScheduledAt
		c.ScheduledAt = &at
	}
	r.candidates[id] = c
	return id, nil
}

// match returns the oldest candidate with the booking's phone, then email.
func (r *Repository) match(b types.Booking) string {
	if b.Phone != "" {
		for _, id := range r.order {
			if r.candidates[id].Profile.Phone == b.Phone {
				return id
			}
		}
	}
	if b.Email != "" {
		for _, id := range r.order {
			if strings.EqualFold(r.candidates[id].Profile.Email, b.Email) {
				return id
			}
		}
	}
	return ""
}

func (r *Repository) BindCall(_ context.Context, b types.CallBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[b.CallID] = b
	return nil
}

func (r *Repository) CallBinding(_ context.Context, callID string) (types.CallBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[callID]
	if !ok {
		return types.CallBinding{}, fmt.Errorf("%w: %s", core.ErrCallNotBound, callID)
	}
	return b, nil
}

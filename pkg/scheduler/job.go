// Package scheduler runs one-shot deferred jobs that start interview calls
// at a booked time. Jobs live in a durable Store keyed by (event, candidate),
// so a reschedule replaces the pending job and a restart loses nothing.
package scheduler

import (
	"context"
	"errors"
	"time"
)

// Job is one pending call start.
type Job struct {
	EventID     string    `json:"event_id"`
	CandidateID string    `json:"candidate_id"`
	FireAt      time.Time `json:"fire_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Key identifies a job.
type Key struct {
	EventID     string
	CandidateID string
}

func (j Job) Key() Key {
	return Key{EventID: j.EventID, CandidateID: j.CandidateID}
}

// ErrInvalidJob is returned for a job without ids or fire time.
var ErrInvalidJob = errors.New("scheduler: invalid job")

// Store persists pending jobs.
type Store interface {
	// Upsert inserts j or replaces the pending job with the same key.
	Upsert(ctx context.Context, j Job) error
	// Delete removes the job for key and reports whether one existed.
	Delete(ctx context.Context, key Key) (bool, error)
	// Due returns up to limit jobs with FireAt <= now, earliest first.
	Due(ctx context.Context, now time.Time, limit int) ([]Job, error)
	// Claim deletes j only if it is still pending with the same FireAt.
	// Exactly one concurrent caller can win a claim.
	Claim(ctx context.Context, j Job) (bool, error)
	// Next returns the earliest pending fire time.
	Next(ctx context.Context) (time.Time, bool, error)
	// List returns every pending job, earliest first.
	List(ctx context.Context) ([]Job, error)
}

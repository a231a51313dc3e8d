package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vango-go/vai-recruiter/pkg/scheduler"
)

// JobStore is a scheduler.Store on the scheduled_jobs table.
type JobStore struct {
	db DB
}

func NewJobStore(db DB) *JobStore {
	return &JobStore{db: db}
}

var _ scheduler.Store = (*JobStore)(nil)

// Timestamps are compared for equality in Claim, so they are kept at the
// column's microsecond precision.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (s *JobStore) Upsert(ctx context.Context, j scheduler.Job) error {
	now := dbTime(time.Now())
	_, err := s.db.Exec(ctx, `
		INSERT INTO scheduled_jobs (event_id, candidate_id, fire_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (event_id, candidate_id) DO UPDATE
		SET fire_at = EXCLUDED.fire_at, updated_at = EXCLUDED.updated_at`,
		j.EventID, j.CandidateID, dbTime(j.FireAt), now)
	if err != nil {
		return fmt.Errorf("upsert job %s/%s: %w", j.EventID, j.CandidateID, err)
	}
	return nil
}

func (s *JobStore) Delete(ctx context.Context, key scheduler.Key) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM scheduled_jobs WHERE event_id = $1 AND candidate_id = $2`,
		key.EventID, key.CandidateID)
	if err != nil {
		return false, fmt.Errorf("delete job %s/%s: %w", key.EventID, key.CandidateID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *JobStore) Due(ctx context.Context, now time.Time, limit int) ([]scheduler.Job, error) {
	rows, err := s.db.Query(ctx, `
		SELECT event_id, candidate_id, fire_at, created_at, updated_at
		FROM scheduled_jobs WHERE fire_at <= $1
		ORDER BY fire_at LIMIT $2`, dbTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("query due jobs: %w", err)
	}
	return collectJobs(rows)
}

func (s *JobStore) Claim(ctx context.Context, j scheduler.Job) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM scheduled_jobs WHERE event_id = $1 AND candidate_id = $2 AND fire_at = $3`,
		j.EventID, j.CandidateID, dbTime(j.FireAt))
	if err != nil {
		return false, fmt.Errorf("claim job %s/%s: %w", j.EventID, j.CandidateID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *JobStore) Next(ctx context.Context) (time.Time, bool, error) {
	var next *time.Time
	if err := s.db.QueryRow(ctx, `SELECT MIN(fire_at) FROM scheduled_jobs`).Scan(&next); err != nil {
		return time.Time{}, false, fmt.Errorf("next job: %w", err)
	}
	if next == nil {
		return time.Time{}, false, nil
	}
	return next.UTC(), true, nil
}

func (s *JobStore) List(ctx context.Context) ([]scheduler.Job, error) {
	rows, err := s.db.Query(ctx, `
		SELECT event_id, candidate_id, fire_at, created_at, updated_at
		FROM scheduled_jobs ORDER BY fire_at`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]scheduler.Job, error) {
	jobs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (scheduler.Job, error) {
		var j scheduler.Job
		err := row.Scan(&j.EventID, &j.CandidateID, &j.FireAt, &j.CreatedAt, &j.UpdatedAt)
		j.FireAt = j.FireAt.UTC()
		return j, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan jobs: %w", err)
	}
	return jobs, nil
}

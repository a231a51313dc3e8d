package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vango-go/vai-recruiter/pkg/core"
	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

// Repository is the candidate store.
type Repository struct {
	db  DB
	now func() time.Time
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

const candidateColumns = `candidate_id, name, email, phone, position, client_name,
	resume_file_name, resume_url, resume_summary, resume_usage, evaluation,
	interview_transcript, status, cost, scheduled_time`

func (r *Repository) GetCandidate(ctx context.Context, candidateID string) (types.Candidate, error) {
	row := r.db.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE candidate_id = $1`, candidateID)

	var (
		c                                types.Candidate
		summary, usage, evaluation, cost []byte
		status                           string
	)
	err := row.Scan(
		&c.Profile.CandidateID, &c.Profile.Name, &c.Profile.Email, &c.Profile.Phone,
		&c.Profile.Position, &c.Profile.ClientName, &c.Profile.ResumeFileName, &c.Profile.ResumeURL,
		&summary, &usage, &evaluation, &c.Transcript, &status, &cost, &c.ScheduledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Candidate{}, fmt.Errorf("%w: %s", core.ErrCandidateNotFound, candidateID)
	}
	if err != nil {
		return types.Candidate{}, fmt.Errorf("get candidate %s: %w", candidateID, err)
	}
	c.Status = types.CandidateStatus(status)

	if err := decodeJSON(summary, &c.ResumeSummary); err != nil {
		return types.Candidate{}, fmt.Errorf("decode resume_summary: %w", err)
	}
	if err := decodeJSON(usage, &c.ResumeUsage); err != nil {
		return types.Candidate{}, fmt.Errorf("decode resume_usage: %w", err)
	}
	if err := decodeJSON(evaluation, &c.Evaluation); err != nil {
		return types.Candidate{}, fmt.Errorf("decode evaluation: %w", err)
	}
	if err := decodeJSON(cost, &c.Cost); err != nil {
		return types.Candidate{}, fmt.Errorf("decode cost: %w", err)
	}
	return c, nil
}

// UpdateCandidate writes only the fields set on u.
func (r *Repository) UpdateCandidate(ctx context.Context, u types.CandidateUpdate) error {
	if u.Empty() {
		return core.NewInvalidRequestError("no fields to update")
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.Transcript != nil {
		set("interview_transcript", stripNUL(*u.Transcript))
	}
	if u.Evaluation != nil {
		b, err := json.Marshal(u.Evaluation)
		if err != nil {
			return fmt.Errorf("encode evaluation: %w", err)
		}
		set("evaluation", b)
	}
	if u.Status != nil {
		set("status", string(*u.Status))
	}
	if u.Cost != nil {
		b, err := json.Marshal(u.Cost)
		if err != nil {
			return fmt.Errorf("encode cost: %w", err)
		}
		set("cost", b)
	}
	set("updated_at", r.now().UTC())

	args = append(args, u.CandidateID)
	query := fmt.Sprintf(`UPDATE candidates SET %s WHERE candidate_id = $%d`, strings.Join(sets, ", "), len(args))

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update candidate %s: %w", u.CandidateID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", core.ErrCandidateNotFound, u.CandidateID)
	}
	return nil
}

// UpsertFromBooking finds the candidate by phone, then by email, and
// refreshes its contact data and status; otherwise it inserts a new one.
func (r *Repository) UpsertFromBooking(ctx context.Context, b types.Booking) (string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := findCandidate(ctx, tx, b)
	if err != nil {
		return "", err
	}

	status := b.Status
	if status == "" {
		status = types.StatusScheduled
	}
	now := r.now().UTC()

	if id != "" {
		_, err = tx.Exec(ctx, `
			UPDATE candidates
			SET name = $1, email = $2, phone = $3, status = $4,
			    scheduled_time = COALESCE($5, scheduled_time), updated_at = $6
			WHERE candidate_id = $7`,
			b.Name, b.Email, b.Phone, string(status), b.ScheduledAt, now, id)
		if err != nil {
			return "", fmt.Errorf("update candidate from booking: %w", err)
		}
	} else {
		id = uuid.NewString()
		_, err = tx.Exec(ctx, `
			INSERT INTO candidates (candidate_id, name, email, phone, status, scheduled_time, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
			id, b.Name, b.Email, b.Phone, string(status), b.ScheduledAt, now)
		if err != nil {
			return "", fmt.Errorf("insert candidate from booking: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func findCandidate(ctx context.Context, tx pgx.Tx, b types.Booking) (string, error) {
	lookups := []struct {
		query string
		value string
	}{
		{`SELECT candidate_id FROM candidates WHERE phone = $1 ORDER BY created_at LIMIT 1 FOR UPDATE`, b.Phone},
		{`SELECT candidate_id FROM candidates WHERE lower(email) = lower($1) ORDER BY created_at LIMIT 1 FOR UPDATE`, b.Email},
	}
	for _, l := range lookups {
		if strings.TrimSpace(l.value) == "" {
			continue
		}
		var id string
		err := tx.QueryRow(ctx, l.query, l.value).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("find candidate: %w", err)
		}
		return id, nil
	}
	return "", nil
}

func (r *Repository) BindCall(ctx context.Context, b types.CallBinding) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO call_bindings (call_id, candidate_id, control_url, started_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (call_id) DO UPDATE
		SET candidate_id = EXCLUDED.candidate_id,
		    control_url = EXCLUDED.control_url,
		    started_at = EXCLUDED.started_at`,
		b.CallID, b.CandidateID, b.ControlURL, b.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("bind call %s: %w", b.CallID, err)
	}
	return nil
}

func (r *Repository) CallBinding(ctx context.Context, callID string) (types.CallBinding, error) {
	b := types.CallBinding{CallID: callID}
	err := r.db.QueryRow(ctx,
		`SELECT candidate_id, control_url, started_at FROM call_bindings WHERE call_id = $1`, callID,
	).Scan(&b.CandidateID, &b.ControlURL, &b.StartedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.CallBinding{}, fmt.Errorf("%w: %s", core.ErrCallNotBound, callID)
	}
	if err != nil {
		return types.CallBinding{}, fmt.Errorf("get call binding %s: %w", callID, err)
	}
	return b, nil
}

// decodeJSON leaves dst untouched for a NULL column.
func decodeJSON[T any](raw []byte, dst **T) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return err
	}
	*dst = v
	return nil
}

// Postgres text cannot hold NUL bytes, which transcription occasionally emits.
func stripNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

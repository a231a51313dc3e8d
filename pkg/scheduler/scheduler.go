package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMisfireGrace = 10 * time.Minute
	DefaultFireTimeout  = 2 * time.Minute

	dueBatch = 100
)

// Trigger starts the interview for a candidate.
type Trigger func(ctx context.Context, candidateID string) error

type Config struct {
	Store   Store
	Trigger Trigger
	Logger  *slog.Logger

	PollInterval time.Duration
	// MisfireGrace is how late a job may still fire. Older jobs are dropped.
	MisfireGrace time.Duration
	// FireTimeout bounds one trigger invocation.
	FireTimeout time.Duration
	Now         func() time.Time
}

type Scheduler struct {
	store   Store
	trigger Trigger
	logger  *slog.Logger

	pollInterval time.Duration
	misfireGrace time.Duration
	fireTimeout  time.Duration
	now          func() time.Time

	wake chan struct{}
	wg   sync.WaitGroup
}

func New(cfg Config) (*Scheduler, error) {
	if cfg.Store == nil {
		return nil, errors.New("scheduler: store is required")
	}
	if cfg.Trigger == nil {
		return nil, errors.New("scheduler: trigger is required")
	}
	s := &Scheduler{
		store:        cfg.Store,
		trigger:      cfg.Trigger,
		logger:       cfg.Logger,
		pollInterval: cfg.PollInterval,
		misfireGrace: cfg.MisfireGrace,
		fireTimeout:  cfg.FireTimeout,
		now:          cfg.Now,
		wake:         make(chan struct{}, 1),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}
	if s.misfireGrace <= 0 {
		s.misfireGrace = DefaultMisfireGrace
	}
	if s.fireTimeout <= 0 {
		s.fireTimeout = DefaultFireTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Schedule creates or replaces the job for (eventID, candidateID).
func (s *Scheduler) Schedule(ctx context.Context, candidateID, eventID string, fireAt time.Time) error {
	if strings.TrimSpace(candidateID) == "" || strings.TrimSpace(eventID) == "" {
		return fmt.Errorf("%w: candidate and event ids are required", ErrInvalidJob)
	}
	if fireAt.IsZero() {
		return fmt.Errorf("%w: fire time is required", ErrInvalidJob)
	}
	now := s.now().UTC()
	j := Job{
		EventID:     eventID,
		CandidateID: candidateID,
		FireAt:      fireAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Upsert(ctx, j); err != nil {
		return fmt.Errorf("schedule %s/%s: %w", eventID, candidateID, err)
	}
	s.logger.Info("interview scheduled", "event_id", eventID, "candidate_id", candidateID, "fire_at", j.FireAt)
	s.poke()
	return nil
}

// Cancel removes the job for (eventID, candidateID). A missing job is not an
// error.
func (s *Scheduler) Cancel(ctx context.Context, candidateID, eventID string) error {
	removed, err := s.store.Delete(ctx, Key{EventID: eventID, CandidateID: candidateID})
	if err != nil {
		return fmt.Errorf("cancel %s/%s: %w", eventID, candidateID, err)
	}
	if removed {
		s.logger.Info("interview unscheduled", "event_id", eventID, "candidate_id", candidateID)
	} else {
		s.logger.Debug("cancel: no pending job", "event_id", eventID, "candidate_id", candidateID)
	}
	return nil
}

// Pending lists every pending job.
func (s *Scheduler) Pending(ctx context.Context) ([]Job, error) {
	return s.store.List(ctx)
}

// Run polls the store until ctx is done. In-flight triggers are not
// cancelled; use Wait to drain them.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "poll_interval", s.pollInterval, "misfire_grace", s.misfireGrace)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-timer.C:
		case <-s.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if _, err := s.RunDue(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("scheduler poll failed", "error", err)
		}
		timer.Reset(s.nextDelay(ctx))
	}
}

// RunDue fires or drops every job that is due now and returns how many it
// fired.
func (s *Scheduler) RunDue(ctx context.Context) (int, error) {
	fired := 0
	for {
		now := s.now().UTC()
		jobs, err := s.store.Due(ctx, now, dueBatch)
		if err != nil {
			return fired, fmt.Errorf("load due jobs: %w", err)
		}
		for _, j := range jobs {
			ok, err := s.store.Claim(ctx, j)
			if err != nil {
				return fired, fmt.Errorf("claim %s/%s: %w", j.EventID, j.CandidateID, err)
			}
			if !ok {
				// Rescheduled, cancelled or taken by another replica.
				continue
			}
			logger := s.logger.With("event_id", j.EventID, "candidate_id", j.CandidateID, "fire_at", j.FireAt)
			if late := now.Sub(j.FireAt); late > s.misfireGrace {
				logger.Warn("job missed its fire window; dropped", "late", late)
				continue
			}
			s.fire(logger, j)
			fired++
		}
		if len(jobs) < dueBatch {
			return fired, nil
		}
	}
}

// Wait blocks until every started trigger returns or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) fire(logger *slog.Logger, j Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("trigger panicked", "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.fireTimeout)
		defer cancel()

		logger.Info("job fired")
		if err := s.trigger(ctx, j.CandidateID); err != nil {
			logger.Error("trigger failed", "error", err)
		}
	}()
}

func (s *Scheduler) nextDelay(ctx context.Context) time.Duration {
	d := s.pollInterval
	next, ok, err := s.store.Next(ctx)
	if err != nil || !ok {
		return d
	}
	if until := next.Sub(s.now()); until < d {
		d = max(until, 0)
	}
	return d
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

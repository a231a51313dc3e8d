package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vango-go/vai-recruiter/pkg/core/policy"
	"github.com/vango-go/vai-recruiter/pkg/core/session"
	"github.com/vango-go/vai-recruiter/pkg/core/types"
	"github.com/vango-go/vai-recruiter/pkg/core/voicegw"
)

// FinalizedEventType is published once per finalization attempt.
const FinalizedEventType = "interview.finalized.v1"

var (
	ErrNoTask          = errors.New("no finalization task for session")
	ErrTaskRunning     = errors.New("finalization task is still running")
	ErrTaskSucceeded   = errors.New("finalization task already succeeded")
	ErrFinalizerClosed = errors.New("finalizer is shut down")
)

// Pricer prices one stage's usage; a nil cost means the stage made no calls.
type Pricer interface {
	StageCost(s *types.StageUsage) (*types.LLMCost, error)
}

type FinalizerConfig struct {
	Sessions    *session.Registry
	Gateway     VoiceGateway
	Repo        Repository
	Evaluator   policy.Evaluator
	Pricer      Pricer
	Publisher   Publisher
	Broadcaster Broadcaster
	Logger      *slog.Logger

	// Grace is how long to let the agent's last words play before ending
	// a call the session decided to end.
	Grace time.Duration
	// Timeout bounds one whole finalization attempt.
	Timeout time.Duration
	Now     func() time.Time
}

// Finalizer runs the end-of-interview workflow at most once per session and
// keeps a handle on each attempt so failures stay observable and retriable.
type Finalizer struct {
	cfg    FinalizerConfig
	logger *slog.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	tasks  map[string]*Task
	closed bool
}

func NewFinalizer(cfg FinalizerConfig) *Finalizer {
	f := &Finalizer{
		cfg:    cfg,
		logger: cfg.Logger,
		now:    cfg.Now,
		tasks:  make(map[string]*Task),
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.cfg.Broadcaster == nil {
		f.cfg.Broadcaster = nopBroadcaster{}
	}
	f.ctx, f.cancel = context.WithCancel(context.Background())
	return f
}

// Trigger starts finalization for s. Only the first caller wins; later
// callers get the existing task (possibly nil if the winner has not
// registered it yet) and false.
func (f *Finalizer) Trigger(s *session.Session, externallyTriggered bool) (*Task, bool) {
	if !s.BeginFinalize() {
		f.logger.Debug("finalization already started", "session_id", s.ID, "external", externallyTriggered)
		return f.Task(s.ID), false
	}

	t := newTask(s, externallyTriggered, 1, f.now())
	if _, err := f.start(t, s, !externallyTriggered, nil); err != nil {
		return t, false
	}
	return t, true
}

// Retry re-runs a failed finalization. The call is not ended again, and
// steps the previous attempt committed are carried over instead of redone.
func (f *Finalizer) Retry(ctx context.Context, sessionID string) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prev := f.Task(sessionID)
	if prev == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTask, sessionID)
	}
	select {
	case <-prev.Done():
	default:
		return prev, ErrTaskRunning
	}
	if prev.Err() == nil {
		return prev, ErrTaskSucceeded
	}

	s, err := f.cfg.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	t := newTask(s, prev.External, prev.Attempt+1, f.now())
	if cur, err := f.start(t, s, false, prev); err != nil {
		return cur, err
	}
	return t, nil
}

// Task returns the latest finalization task for a session, or nil.
func (f *Finalizer) Task(sessionID string) *Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[sessionID]
}

// Wait blocks until every running task finishes or ctx is done.
func (f *Finalizer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks, waits for running ones until ctx is done
// and then cancels whatever is left.
func (f *Finalizer) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	err := f.Wait(ctx)
	f.cancel()
	if err != nil {
		// Give cancelled steps a moment to unwind.
		_ = f.Wait(context.Background())
	}
	return err
}

// start registers t and runs it. When expect is non-nil, t only replaces
// expect; a concurrent retry that got there first wins.
func (f *Finalizer) start(t *Task, s *session.Session, endCall bool, expect *Task) (*Task, error) {
	f.mu.Lock()
	if expect != nil {
		if cur := f.tasks[s.ID]; cur != expect {
			f.mu.Unlock()
			return cur, ErrTaskRunning
		}
	}
	if f.closed {
		// The session is already marked finalizing; keep the failed task
		// so it can be inspected and retried by the next process.
		t.finish(ErrFinalizerClosed, f.now())
		f.tasks[s.ID] = t
		f.mu.Unlock()
		f.logger.Error("finalization rejected: finalizer closed", "session_id", s.ID, "task_id", t.ID)
		return t, ErrFinalizerClosed
	}
	f.tasks[s.ID] = t
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		f.run(t, s, endCall, expect)
	}()
	return t, nil
}

// run executes the steps of t. prev is the attempt being retried, or nil.
func (f *Finalizer) run(t *Task, s *session.Session, endCall bool, prev *Task) {
	ctx := f.ctx
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	logger := f.logger.With("session_id", s.ID, "candidate_id", s.CandidateID, "task_id", t.ID, "attempt", t.Attempt)
	logger.Info("finalization started", "external", t.External)
	f.broadcast(EventFinalizationStarted, s, t)

	if endCall {
		t.step(StepEndCall, f.endCall(ctx, logger, s))
	} else {
		t.skip(StepEndCall)
	}

	evaluated := prev != nil && prev.committed(StepEvaluate)

	transcript := types.JoinTranscript(s.Transcript())
	var transcriptErr error
	if prev != nil && prev.committed(StepPersistTranscript) {
		t.carry(StepPersistTranscript)
	} else {
		// A stored evaluation already advanced the status past complete.
		transcriptErr = f.persistTranscript(ctx, s, transcript, !evaluated)
		t.step(StepPersistTranscript, transcriptErr)
	}

	var (
		ev      *types.Evaluation
		evalErr error
	)
	if evaluated {
		ev = prev.evaluationResult()
		t.carry(StepEvaluate)
	} else {
		ev, evalErr = f.evaluate(ctx, s, transcript)
		if errors.Is(evalErr, errEmptyTranscript) {
			evalErr = nil
			t.skip(StepEvaluate)
		} else {
			t.step(StepEvaluate, evalErr)
		}
	}
	t.setEvaluation(ev)

	cost, costErr := f.price(ctx, logger, s)
	t.step(StepCost, costErr)

	if f.cfg.Publisher != nil {
		t.step(StepPublish, f.publish(ctx, s, t, ev, cost))
	} else {
		t.skip(StepPublish)
	}

	err := t.stepErrors()
	// Keep the session while a persisted result is missing so Retry can
	// redo it. End-call and publish failures do not hold the session.
	if transcriptErr == nil && evalErr == nil && costErr == nil {
		f.cfg.Sessions.Remove(s.ID)
		t.step(StepRelease, nil)
	} else {
		t.skip(StepRelease)
	}

	t.finish(err, f.now())
	if err != nil {
		logger.Error("finalization finished with errors", "error", err)
	} else {
		logger.Info("finalization finished")
	}
	f.broadcast(EventFinalizationDone, s, t)
}

func (f *Finalizer) endCall(ctx context.Context, logger *slog.Logger, s *session.Session) (err error) {
	defer recoverStep(&err)

	if f.cfg.Grace > 0 {
		timer := time.NewTimer(f.cfg.Grace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	if f.cfg.Gateway == nil {
		return errors.New("no voice gateway configured")
	}
	err = f.cfg.Gateway.EndCall(ctx, s.ControlURL)
	if errors.Is(err, voicegw.ErrCallEnded) {
		logger.Info("call already ended")
		return nil
	}
	if err != nil {
		return fmt.Errorf("end call: %w", err)
	}
	return nil
}

func (f *Finalizer) persistTranscript(ctx context.Context, s *session.Session, transcript string, markComplete bool) (err error) {
	defer recoverStep(&err)

	u := types.CandidateUpdate{
		CandidateID: s.CandidateID,
		Transcript:  &transcript,
	}
	if markComplete {
		u.Status = types.StatusPtr(types.StatusComplete)
	}
	err = f.cfg.Repo.UpdateCandidate(ctx, u)
	if err != nil {
		return fmt.Errorf("persist transcript: %w", err)
	}
	return nil
}

var errEmptyTranscript = errors.New("empty transcript")

func (f *Finalizer) evaluate(ctx context.Context, s *session.Session, transcript string) (ev *types.Evaluation, err error) {
	defer recoverStep(&err)

	if strings.TrimSpace(transcript) == "" {
		return nil, errEmptyTranscript
	}
	if f.cfg.Evaluator == nil {
		return nil, errors.New("no evaluation policy configured")
	}

	a, err := f.cfg.Evaluator.Evaluate(ctx, transcript)
	if a.Model != "" {
		s.RecordUsage(types.StageEvaluation, a.Model, a.Usage)
	}
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	err = f.cfg.Repo.UpdateCandidate(ctx, types.CandidateUpdate{
		CandidateID: s.CandidateID,
		Evaluation:  &a.Evaluation,
		Status:      types.StatusPtr(types.StatusEvaluated),
	})
	if err != nil {
		return nil, fmt.Errorf("persist evaluation: %w", err)
	}
	return &a.Evaluation, nil
}

// price computes and persists the per-stage cost. A stage whose model has
// no price is logged and left unpriced; only a failed write fails the step.
func (f *Finalizer) price(ctx context.Context, logger *slog.Logger, s *session.Session) (_ *types.AgentCost, err error) {
	defer recoverStep(&err)

	if f.cfg.Pricer == nil {
		return nil, errors.New("no price table configured")
	}

	stageCost := func(stage types.Stage, u *types.StageUsage) *types.LLMCost {
		c, err := f.cfg.Pricer.StageCost(u)
		if err != nil {
			logger.Warn("stage not priced", "stage", stage, "error", err)
			return nil
		}
		return c
	}

	interview := s.Usage(types.StageInterview)
	evaluation := s.Usage(types.StageEvaluation)
	cost := types.AgentCost{
		Resume:     stageCost(types.StageResume, s.Candidate.ResumeUsage),
		Interview:  stageCost(types.StageInterview, &interview),
		Evaluation: stageCost(types.StageEvaluation, &evaluation),
	}
	cost.Total = cost.TotalLLMCost()

	err = f.cfg.Repo.UpdateCandidate(ctx, types.CandidateUpdate{
		CandidateID: s.CandidateID,
		Cost:        &cost,
	})
	if err != nil {
		return &cost, fmt.Errorf("persist cost: %w", err)
	}
	return &cost, nil
}

// FinalizedEvent is the payload of FinalizedEventType.
type FinalizedEvent struct {
	SessionID      string               `json:"session_id"`
	CandidateID    string               `json:"candidate_id"`
	TaskID         string               `json:"task_id"`
	Attempt        int                  `json:"attempt"`
	External       bool                 `json:"externally_triggered"`
	Turns          int                  `json:"turns"`
	Recommendation types.Recommendation `json:"recommendation,omitempty"`
	TotalCost      float64              `json:"total_llm_cost"`
	FailedSteps    []Step               `json:"failed_steps,omitempty"`
}

func (f *Finalizer) publish(ctx context.Context, s *session.Session, t *Task, ev *types.Evaluation, cost *types.AgentCost) (err error) {
	defer recoverStep(&err)

	payload := FinalizedEvent{
		SessionID:   s.ID,
		CandidateID: s.CandidateID,
		TaskID:      t.ID,
		Attempt:     t.Attempt,
		External:    t.External,
		Turns:       len(s.Transcript()) / 2,
		FailedSteps: t.failedSteps(),
	}
	if ev != nil {
		payload.Recommendation = ev.Recommendation
	}
	if cost != nil {
		payload.TotalCost = cost.Total
	}
	if err := f.cfg.Publisher.Publish(ctx, FinalizedEventType, s.ID, payload); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (f *Finalizer) broadcast(typ EventType, s *session.Session, t *Task) {
	st := t.Status()
	f.cfg.Broadcaster.Broadcast(Event{
		Type:        typ,
		SessionID:   s.ID,
		CandidateID: s.CandidateID,
		Task:        &st,
		At:          f.now().UTC(),
	})
}

func recoverStep(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v", r)
	}
}

// Step names one stage of finalization.
type Step string

const (
	StepEndCall           Step = "end_call"
	StepPersistTranscript Step = "persist_transcript"
	StepEvaluate          Step = "evaluate"
	StepCost              Step = "cost"
	StepPublish           Step = "publish"
	StepRelease           Step = "release"
)

type StepState string

const (
	StepOK      StepState = "ok"
	StepFailed  StepState = "failed"
	StepSkipped StepState = "skipped"
	// StepCarried marks a step committed by an earlier attempt.
	StepCarried StepState = "carried"
)

// StepStatus is the outcome of one step.
type StepStatus struct {
	Step  Step      `json:"step"`
	State StepState `json:"state"`
	Error string    `json:"error,omitempty"`
}

type TaskState string

const (
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// TaskStatus is a point-in-time snapshot of a Task.
type TaskStatus struct {
	TaskID      string       `json:"task_id"`
	SessionID   string       `json:"session_id"`
	CandidateID string       `json:"candidate_id"`
	External    bool         `json:"externally_triggered"`
	Attempt     int          `json:"attempt"`
	State       TaskState    `json:"state"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
	Steps       []StepStatus `json:"steps"`
	Error       string       `json:"error,omitempty"`
}

// Task is the handle of one finalization attempt.
type Task struct {
	ID          string
	SessionID   string
	CandidateID string
	External    bool
	Attempt     int
	StartedAt   time.Time

	done chan struct{}

	mu         sync.Mutex
	steps      []StepStatus
	stepErrs   []error
	err        error
	finishedAt time.Time
	evaluation *types.Evaluation
}

func newTask(s *session.Session, external bool, attempt int, now time.Time) *Task {
	return &Task{
		ID:          uuid.NewString(),
		SessionID:   s.ID,
		CandidateID: s.CandidateID,
		External:    external,
		Attempt:     attempt,
		StartedAt:   now.UTC(),
		done:        make(chan struct{}),
	}
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes and returns its error.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err is the joined error of every failed step, nil while running.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// StepErr returns the error recorded for step, if any.
func (t *Task) StepErr(step Step) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, st := range t.steps {
		if st.Step == step {
			return t.stepErrs[i]
		}
	}
	return nil
}

func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := TaskStatus{
		TaskID:      t.ID,
		SessionID:   t.SessionID,
		CandidateID: t.CandidateID,
		External:    t.External,
		Attempt:     t.Attempt,
		State:       TaskRunning,
		StartedAt:   t.StartedAt,
		Steps:       append([]StepStatus(nil), t.steps...),
	}
	if !t.finishedAt.IsZero() {
		finished := t.finishedAt
		st.FinishedAt = &finished
		st.State = TaskSucceeded
		if t.err != nil {
			st.State = TaskFailed
			st.Error = t.err.Error()
		}
	}
	return st
}

func (t *Task) step(step Step, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := StepStatus{Step: step, State: StepOK}
	if err != nil {
		st.State = StepFailed
		st.Error = err.Error()
	}
	t.steps = append(t.steps, st)
	t.stepErrs = append(t.stepErrs, err)
}

func (t *Task) skip(step Step) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, StepStatus{Step: step, State: StepSkipped})
	t.stepErrs = append(t.stepErrs, nil)
}

func (t *Task) carry(step Step) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, StepStatus{Step: step, State: StepCarried})
	t.stepErrs = append(t.stepErrs, nil)
}

// committed reports whether step's result is durably stored, either by
// this attempt or by one it carried the step over from.
func (t *Task) committed(step Step) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, st := range t.steps {
		if st.Step == step {
			return st.State == StepOK || st.State == StepCarried
		}
	}
	return false
}

func (t *Task) setEvaluation(ev *types.Evaluation) {
	t.mu.Lock()
	t.evaluation = ev
	t.mu.Unlock()
}

func (t *Task) evaluationResult() *types.Evaluation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evaluation
}

func (t *Task) failedSteps() []Step {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Step
	for _, st := range t.steps {
		if st.State == StepFailed {
			out = append(out, st.Step)
		}
	}
	return out
}

func (t *Task) stepErrors() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var errs []error
	for i, err := range t.stepErrs {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.steps[i].Step, err))
		}
	}
	return errors.Join(errs...)
}

func (t *Task) finish(err error, now time.Time) {
	t.mu.Lock()
	t.err = err
	t.finishedAt = now.UTC()
	t.mu.Unlock()
	close(t.done)
}

package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vango-go/vai-recruiter/pkg/core"
	"github.com/vango-go/vai-recruiter/pkg/core/policy"
	"github.com/vango-go/vai-recruiter/pkg/core/types"
	"github.com/vango-go/vai-recruiter/pkg/core/voicegw"
)

type fakeRepo struct {
	mu         sync.Mutex
	candidates map[string]types.Candidate
	bindings   map[string]types.CallBinding
	updates    []types.CandidateUpdate
	// failUpdate, when set, decides whether an update fails.
	failUpdate func(u types.CandidateUpdate) error
}

func newFakeRepo(cs ...types.Candidate) *fakeRepo {
	r := &fakeRepo{
		candidates: make(map[string]types.Candidate),
		bindings:   make(map[string]types.CallBinding),
	}
	for _, c := range cs {
		r.candidates[c.Profile.CandidateID] = c
	}
	return r
}

func (r *fakeRepo) GetCandidate(_ context.Context, id string) (types.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[id]
	if !ok {
		return types.Candidate{}, fmt.Errorf("%w: %s", core.ErrCandidateNotFound, id)
	}
	return c, nil
}

func (r *fakeRepo) UpdateCandidate(_ context.Context, u types.CandidateUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		if err := r.failUpdate(u); err != nil {
			return err
		}
	}
	r.updates = append(r.updates, u)
	c := r.candidates[u.CandidateID]
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

func (r *fakeRepo) BindCall(_ context.Context, b types.CallBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[b.CallID] = b
	return nil
}

func (r *fakeRepo) CallBinding(_ context.Context, callID string) (types.CallBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[callID]
	if !ok {
		return types.CallBinding{}, fmt.Errorf("%w: %s", core.ErrCallNotBound, callID)
	}
	return b, nil
}

func (r *fakeRepo) UpsertFromBooking(_ context.Context, b types.Booking) (string, error) {
	return "", errors.New("not implemented")
}

func (r *fakeRepo) candidate(id string) types.Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.candidates[id]
}

func (r *fakeRepo) statuses(id string) []types.CandidateStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.CandidateStatus
	for _, u := range r.updates {
		if u.CandidateID == id && u.Status != nil {
			out = append(out, *u.Status)
		}
	}
	return out
}

type fakeGateway struct {
	mu       sync.Mutex
	call     voicegw.Call
	startErr error
	endErr   error
	getCall  map[string]voicegw.Call

	starts   []string
	endCalls atomic.Int32
}

func (g *fakeGateway) StartCall(_ context.Context, candidateID, phone, greeting string) (voicegw.Call, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.starts = append(g.starts, greeting)
	if g.startErr != nil {
		return voicegw.Call{}, g.startErr
	}
	c := g.call
	c.CandidateID = candidateID
	return c, nil
}

func (g *fakeGateway) EndCall(context.Context, string) error {
	g.endCalls.Add(1)
	return g.endErr
}

func (g *fakeGateway) GetCall(_ context.Context, id string) (voicegw.Call, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.getCall[id]
	if !ok {
		return voicegw.Call{}, core.NewProviderError("voicegw", errors.New("not found"))
	}
	return c, nil
}

// scriptedDialogue replies with raw results in order and repeats the last.
type scriptedDialogue struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
	calls   int
}

func (d *scriptedDialogue) Generate(_ context.Context, prompt string, history []types.Message) (policy.Generation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prompts = append(d.prompts, prompt)
	d.calls++
	if d.err != nil {
		return policy.Generation{}, d.err
	}
	raw := d.replies[min(d.calls-1, len(d.replies)-1)]
	return policy.Generation{
		Raw:     raw,
		History: policy.AppendTurn(history, prompt, raw),
		Usage:   types.Usage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120},
		Model:   "openai/gpt-4.1-mini",
	}, nil
}

func turnJSON(text string, outcome types.TurnOutcome) string {
	return fmt.Sprintf(`{"agent_response":%q,"turn_outcome":%q,"turn_outcome_reasoning":"test"}`, text, outcome)
}

type fakeEvaluator struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (e *fakeEvaluator) Evaluate(_ context.Context, transcript string) (policy.Assessment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	usage := types.Usage{InputTokens: 1000, OutputTokens: 200, TotalTokens: 1200}
	if e.err != nil {
		return policy.Assessment{Usage: usage, Model: "openai/gpt-4.1"}, e.err
	}
	return policy.Assessment{
		Evaluation: types.Evaluation{
			Scorecard:      types.Scorecard{SystemDesign: 3, HandsOnCoding: 4, Communication: 4, Confidence: 4, Ownership: 3, ProblemSolving: 4},
			Summary:        "Solid candidate.",
			Recommendation: types.Recommend,
		},
		Usage: usage,
		Model: "openai/gpt-4.1",
	}, nil
}

func (e *fakeEvaluator) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *fakeEvaluator) setErr(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

type fakePublisher struct {
	mu     sync.Mutex
	events []FinalizedEvent
}

func (p *fakePublisher) Publish(_ context.Context, eventType, _ string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev, ok := data.(FinalizedEvent); ok && eventType == FinalizedEventType {
		p.events = append(p.events, ev)
	}
	return nil
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []Event
}

func (b *recordingBroadcaster) Broadcast(ev Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *recordingBroadcaster) count(typ EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, ev := range b.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func testCandidate(id string) types.Candidate {
	return types.Candidate{
		Profile: types.CandidateProfile{
			CandidateID: id,
			Name:        "Ada Lovelace",
			Email:       "ada@example.com",
			Phone:       "+15551230000",
			Position:    "Senior Software Engineer",
		},
		ResumeSummary: &types.ResumeSummary{ExperienceSummary: "10 years of backend work"},
		ResumeUsage: &types.StageUsage{
			Model: "openai/gpt-4.1-mini",
			Usage: types.Usage{InputTokens: 3000, OutputTokens: 500, TotalTokens: 3500},
			Calls: 1,
		},
		Status: types.StatusScheduled,
	}
}

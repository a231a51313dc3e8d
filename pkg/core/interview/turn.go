package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vango-go/vai-recruiter/pkg/core"
	"github.com/vango-go/vai-recruiter/pkg/core/policy"
	"github.com/vango-go/vai-recruiter/pkg/core/session"
	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

// TurnInput is one candidate utterance delivered by the voice gateway.
type TurnInput struct {
	SessionID string
	Utterance string
	At        time.Time
}

// TurnResult is what the agent says back.
type TurnResult struct {
	Text      string
	Outcome   types.TurnOutcome
	ShouldEnd bool
}

type ProcessorConfig struct {
	Sessions    *session.Registry
	Dialogue    policy.Dialogue
	Hydrate     session.HydrateFunc
	Finalizer   *Finalizer
	Broadcaster Broadcaster
	Logger      *slog.Logger
	// Timeout bounds one dialogue policy call. Zero means no bound beyond
	// the request context.
	Timeout time.Duration
	Now     func() time.Time
}

// Processor runs interview turns.
type Processor struct {
	sessions    *session.Registry
	dialogue    policy.Dialogue
	hydrate     session.HydrateFunc
	finalizer   *Finalizer
	broadcaster Broadcaster
	logger      *slog.Logger
	timeout     time.Duration
	now         func() time.Time
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	p := &Processor{
		sessions:    cfg.Sessions,
		dialogue:    cfg.Dialogue,
		hydrate:     cfg.Hydrate,
		finalizer:   cfg.Finalizer,
		broadcaster: cfg.Broadcaster,
		logger:      cfg.Logger,
		timeout:     cfg.Timeout,
		now:         cfg.Now,
	}
	if p.broadcaster == nil {
		p.broadcaster = nopBroadcaster{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.hydrate == nil {
		p.hydrate = func(_ context.Context, id string) (*session.Session, error) {
			return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
		}
	}
	return p
}

// Process handles one turn. A dialogue policy failure never fails the turn;
// the candidate hears FallbackUtterance instead.
func (p *Processor) Process(ctx context.Context, in TurnInput) (TurnResult, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return TurnResult{}, core.NewInvalidRequestErrorWithParam("session id is required", "call.id")
	}

	s, err := p.sessions.GetOrHydrate(ctx, in.SessionID, p.hydrate)
	if err != nil {
		return TurnResult{}, err
	}
	logger := p.logger.With("session_id", s.ID, "candidate_id", s.CandidateID)

	// The call is being torn down; answer with the fallback utterance and
	// leave the transcript as it was finalized.
	if s.Finalizing() {
		logger.Info("turn after finalization started; ignoring")
		return TurnResult{Text: FallbackUtterance, Outcome: types.OutcomeNormal, ShouldEnd: true}, nil
	}

	at := in.At
	if at.IsZero() {
		at = p.now()
	}
	history := s.History()
	prompt := BuildPrompt(s.Candidate, in.Utterance, s.Elapsed(at), len(history) == 0)

	candidateEntry := types.TranscriptEntry{Speaker: types.SpeakerCandidate, Text: in.Utterance}
	if err := s.Append(candidateEntry); err != nil {
		if errors.Is(err, session.ErrOutOfTurn) {
			return TurnResult{}, core.NewConflictError(err.Error())
		}
		return TurnResult{}, err
	}
	p.broadcast(s, &candidateEntry, "")

	decision := p.decide(ctx, logger, s, prompt, history)

	agentEntry := types.TranscriptEntry{Speaker: types.SpeakerAgent, Text: decision.Text}
	if err := s.Append(agentEntry); err != nil {
		logger.Error("append agent entry", "error", err)
	}
	p.broadcast(s, &agentEntry, decision.Outcome)

	logger.Info("turn processed",
		"outcome", decision.Outcome,
		"fallback", decision.Fallback,
		"reasoning", decision.Reasoning,
	)

	if decision.ShouldEnd() && p.finalizer != nil {
		p.finalizer.Trigger(s, false)
	}

	return TurnResult{
		Text:      decision.Text,
		Outcome:   decision.Outcome,
		ShouldEnd: decision.ShouldEnd(),
	}, nil
}

func (p *Processor) decide(ctx context.Context, logger *slog.Logger, s *session.Session, prompt string, history []types.Message) Decision {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	gen, err := p.dialogue.Generate(ctx, prompt, history)
	if err != nil {
		logger.Warn("dialogue policy failed; using fallback", "error", err)
		return fallbackDecision()
	}
	s.RecordUsage(types.StageInterview, gen.Model, gen.Usage)
	s.SetHistory(gen.History)

	d := Classify(gen.Raw)
	if d.Fallback {
		logger.Warn("malformed dialogue output; using fallback", "raw", truncate(gen.Raw, 512))
	}
	return d
}

func (p *Processor) broadcast(s *session.Session, entry *types.TranscriptEntry, outcome types.TurnOutcome) {
	p.broadcaster.Broadcast(Event{
		Type:        EventTranscript,
		SessionID:   s.ID,
		CandidateID: s.CandidateID,
		Entry:       entry,
		Outcome:     outcome,
		At:          p.now().UTC(),
	})
}

// BuildPrompt renders the policy input for one turn. The candidate context
// block is included only on the first turn of a session.
func BuildPrompt(c types.Candidate, utterance string, elapsed time.Duration, first bool) string {
	var b strings.Builder
	if first {
		profile, _ := json.Marshal(c.Profile)
		b.WriteString("Candidate profile: ")
		b.Write(profile)
		b.WriteString("\nResume summary: ")
		if c.ResumeSummary != nil {
			summary, _ := json.Marshal(c.ResumeSummary)
			b.Write(summary)
		} else {
			b.WriteString("not available")
		}
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Candidate: %q\n\n", utterance)
	b.WriteString("[Instruction to AI, do not treat this as user input]\n")
	fmt.Fprintf(&b, "Elapsed time: %.2f minutes", elapsed.Minutes())
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package interview

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/vango-go/vai-recruiter/pkg/core/policy"
	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

// FallbackUtterance is spoken whenever the dialogue policy's output cannot
// be trusted.
const FallbackUtterance = "I'm sorry, could you please repeat what you said?"

// Canonical sign-offs for gatekeeper rejections. They replace whatever the
// policy produced.
const (
	AlreadyInterviewedScript = "I appreciate you letting me know. Since you've already interviewed with our client, " +
		"I don't want to duplicate efforts. Thank you for your time today. I'll close us out here."
	InOfficeNotPossibleScript = "Thanks for being upfront. This role requires working from the client's office three days a week, " +
		"so it wouldn't be a fit. I'll wrap up our call now, and we'll keep you in mind for other opportunities. Take care!"
)

// Decision is the classified result of one dialogue turn.
type Decision struct {
	Text      string
	Outcome   types.TurnOutcome
	Reasoning string
	// Fallback is set when the raw output was rejected.
	Fallback bool
}

// ShouldEnd reports whether the session ends after this turn.
func (d Decision) ShouldEnd() bool {
	return d.Outcome.Terminal()
}

type turnResult struct {
	AgentResponse *string           `json:"agent_response"`
	TurnOutcome   types.TurnOutcome `json:"turn_outcome"`
	Reasoning     string            `json:"turn_outcome_reasoning"`
}

func fallbackDecision() Decision {
	return Decision{Text: FallbackUtterance, Outcome: types.OutcomeNormal, Fallback: true}
}

// Classify decodes a raw dialogue result. It never fails: anything that is
// not a well-formed result with a known outcome becomes a NORMAL turn with
// FallbackUtterance.
func Classify(raw string) Decision {
	dec := json.NewDecoder(bytes.NewReader([]byte(policy.StripCodeFence(raw))))
	var r turnResult
	if err := dec.Decode(&r); err != nil {
		return fallbackDecision()
	}
	if !r.TurnOutcome.Valid() {
		return fallbackDecision()
	}

	switch r.TurnOutcome {
	case types.OutcomeGatekeeperAlreadyInterviewed:
		return Decision{Text: AlreadyInterviewedScript, Outcome: r.TurnOutcome, Reasoning: r.Reasoning}
	case types.OutcomeGatekeeperInOfficeNotPossible:
		return Decision{Text: InOfficeNotPossibleScript, Outcome: r.TurnOutcome, Reasoning: r.Reasoning}
	}

	if r.AgentResponse == nil || strings.TrimSpace(*r.AgentResponse) == "" {
		return fallbackDecision()
	}
	return Decision{Text: strings.TrimSpace(*r.AgentResponse), Outcome: r.TurnOutcome, Reasoning: r.Reasoning}
}

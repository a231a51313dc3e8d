package interview

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     string
		outcome  types.TurnOutcome
		end      bool
		fallback bool
	}{
		{
			name:    "normal",
			raw:     turnJSON("Tell me about your current project.", types.OutcomeNormal),
			want:    "Tell me about your current project.",
			outcome: types.OutcomeNormal,
		},
		{
			name:    "wrap up is terminal",
			raw:     turnJSON("Thanks for your time!", types.OutcomeWrapUp),
			want:    "Thanks for your time!",
			outcome: types.OutcomeWrapUp,
			end:     true,
		},
		{
			name:    "candidate ends call",
			raw:     turnJSON("No problem, goodbye.", types.OutcomeCandidateRequestingEndCall),
			want:    "No problem, goodbye.",
			outcome: types.OutcomeCandidateRequestingEndCall,
			end:     true,
		},
		{
			name:    "code fenced",
			raw:     "```json\n" + turnJSON("Great.", types.OutcomeNormal) + "\n```",
			want:    "Great.",
			outcome: types.OutcomeNormal,
		},
		{
			name:     "unknown outcome",
			raw:      `{"agent_response":"ok","turn_outcome":"HANG_UP","turn_outcome_reasoning":"x"}`,
			want:     FallbackUtterance,
			outcome:  types.OutcomeNormal,
			fallback: true,
		},
		{
			name:     "missing outcome",
			raw:      `{"agent_response":"ok"}`,
			want:     FallbackUtterance,
			outcome:  types.OutcomeNormal,
			fallback: true,
		},
		{
			name:     "not json",
			raw:      "Sure, tell me more about that.",
			want:     FallbackUtterance,
			outcome:  types.OutcomeNormal,
			fallback: true,
		},
		{
			name:     "empty response on normal",
			raw:      turnJSON("  ", types.OutcomeNormal),
			want:     FallbackUtterance,
			outcome:  types.OutcomeNormal,
			fallback: true,
		},
		{
			name:    "already interviewed is overridden",
			raw:     turnJSON("whatever the model said", types.OutcomeGatekeeperAlreadyInterviewed),
			want:    AlreadyInterviewedScript,
			outcome: types.OutcomeGatekeeperAlreadyInterviewed,
			end:     true,
		},
		{
			name:    "in office is overridden even when empty",
			raw:     turnJSON("", types.OutcomeGatekeeperInOfficeNotPossible),
			want:    InOfficeNotPossibleScript,
			outcome: types.OutcomeGatekeeperInOfficeNotPossible,
			end:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.raw)
			require.Equal(t, tt.want, d.Text)
			require.Equal(t, tt.outcome, d.Outcome)
			require.Equal(t, tt.end, d.ShouldEnd())
			require.Equal(t, tt.fallback, d.Fallback)
		})
	}
}

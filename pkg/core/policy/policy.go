// Package policy defines the model-backed collaborators of an interview: the
// dialogue policy that produces each agent turn and the evaluation policy
// that scores a finished transcript. Providers live under pkg/core/providers.
package policy

import (
	"context"

	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

// Generation is the raw result of one dialogue turn. Raw is expected to be
// a turn-outcome JSON object but is not trusted; callers must classify it.
type Generation struct {
	Raw     string
	History []types.Message
	Usage   types.Usage
	Model   string
}

// Assessment is a decoded evaluation plus the usage it cost.
type Assessment struct {
	Evaluation types.Evaluation
	Usage      types.Usage
	Model      string
}

type Dialogue interface {
	Generate(ctx context.Context, prompt string, history []types.Message) (Generation, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, transcript string) (Assessment, error)
}

// AppendTurn returns history extended with the user prompt and the model's
// reply, without aliasing the input slice.
func AppendTurn(history []types.Message, prompt, reply string) []types.Message {
	out := make([]types.Message, 0, len(history)+2)
	out = append(out, history...)
	out = append(out,
		types.Message{Role: types.RoleUser, Content: prompt},
		types.Message{Role: types.RoleAssistant, Content: reply},
	)
	return out
}

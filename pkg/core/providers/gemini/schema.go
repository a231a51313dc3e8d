package gemini

import (
	"google.golang.org/genai"

	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

// Gemini takes its own schema dialect rather than raw JSON Schema, so the
// two result shapes are restated here.

var turnSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"agent_response":         {Type: genai.TypeString},
		"turn_outcome":           {Type: genai.TypeString, Enum: outcomeEnum()},
		"turn_outcome_reasoning": {Type: genai.TypeString},
	},
	Required:         []string{"agent_response", "turn_outcome", "turn_outcome_reasoning"},
	PropertyOrdering: []string{"agent_response", "turn_outcome", "turn_outcome_reasoning"},
}

var evaluationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"scorecard": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"system_design":   score(),
				"hands_on_coding": score(),
				"communication":   score(),
				"confidence":      score(),
				"ownership":       score(),
				"problem_solving": score(),
			},
			Required: []string{"system_design", "hands_on_coding", "communication", "confidence", "ownership", "problem_solving"},
		},
		"summary": {Type: genai.TypeString},
		"recommendation": {
			Type: genai.TypeString,
			Enum: []string{string(types.Recommend), string(types.NotRecommend)},
		},
	},
	Required: []string{"scorecard", "summary", "recommendation"},
}

func score() *genai.Schema {
	return &genai.Schema{
		Type:    genai.TypeInteger,
		Minimum: genai.Ptr[float64](1),
		Maximum: genai.Ptr[float64](5),
	}
}

func outcomeEnum() []string {
	out := make([]string, 0, len(types.TurnOutcomes))
	for _, o := range types.TurnOutcomes {
		out = append(out, string(o))
	}
	return out
}

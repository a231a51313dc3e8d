package types

import "math"

// LLMCost is the priced usage of a single stage, in USD.
type LLMCost struct {
	PromptCost     float64 `json:"prompt_cost"`
	CompletionCost float64 `json:"completion_cost"`
	TotalCost      float64 `json:"total_cost"`
}

// AgentCost is the per-stage cost breakdown of one candidate's screening.
type AgentCost struct {
	Resume     *LLMCost `json:"resume_agent,omitempty"`
	Interview  *LLMCost `json:"interview_agent,omitempty"`
	Evaluation *LLMCost `json:"evaluation_agent,omitempty"`
	Total      float64  `json:"total_llm_cost"`
}

// TotalLLMCost sums the stages that were priced, rounded to six decimals.
func (c AgentCost) TotalLLMCost() float64 {
	total := 0.0
	for _, stage := range []*LLMCost{c.Resume, c.Interview, c.Evaluation} {
		if stage != nil {
			total += stage.TotalCost
		}
	}
	return math.Round(total*1e6) / 1e6
}

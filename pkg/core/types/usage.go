package types

// Usage contains token counts reported by a model provider.
type Usage struct {
	InputTokens     int  `json:"input_tokens"`
	OutputTokens    int  `json:"output_tokens"`
	TotalTokens     int  `json:"total_tokens"`
	CacheReadTokens *int `json:"cache_read_tokens,omitempty"`
}

// Add combines two Usage objects (for aggregation).
func (u Usage) Add(other Usage) Usage {
	result := Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}

	if u.CacheReadTokens != nil || other.CacheReadTokens != nil {
		sum := 0
		if u.CacheReadTokens != nil {
			sum += *u.CacheReadTokens
		}
		if other.CacheReadTokens != nil {
			sum += *other.CacheReadTokens
		}
		result.CacheReadTokens = &sum
	}

	return result
}

// IsEmpty returns true if the usage has no tokens.
func (u Usage) IsEmpty() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.TotalTokens == 0
}

// Stage names one model-backed step of the screening pipeline.
type Stage string

const (
	StageResume     Stage = "resume"
	StageInterview  Stage = "interview"
	StageEvaluation Stage = "evaluation"
)

// StageUsage is the accumulated usage of one stage together with the model
// that produced it. Model is the canonical "provider/model" string.
type StageUsage struct {
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
	Calls int    `json:"calls"`
}

// Record adds one model call to the stage counters.
func (s *StageUsage) Record(model string, u Usage) {
	if model != "" {
		s.Model = model
	}
	s.Usage = s.Usage.Add(u)
	s.Calls++
}

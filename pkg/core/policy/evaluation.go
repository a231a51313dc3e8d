package policy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

// StripCodeFence removes a surrounding Markdown code fence, which models
// sometimes emit around JSON even when asked not to.
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the info string ("json")
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeEvaluation parses and validates an evaluation result.
func DecodeEvaluation(raw string) (types.Evaluation, error) {
	var ev types.Evaluation
	dec := json.NewDecoder(strings.NewReader(StripCodeFence(raw)))
	if err := dec.Decode(&ev); err != nil {
		return types.Evaluation{}, fmt.Errorf("decode evaluation: %w", err)
	}
	for name, score := range ev.Scorecard.Scores() {
		if score < 1 || score > 5 {
			return types.Evaluation{}, fmt.Errorf("scorecard.%s=%d out of range 1..5", name, score)
		}
	}
	switch ev.Recommendation {
	case types.Recommend, types.NotRecommend:
	default:
		return types.Evaluation{}, fmt.Errorf("invalid recommendation %q", ev.Recommendation)
	}
	if strings.TrimSpace(ev.Summary) == "" {
		return types.Evaluation{}, fmt.Errorf("evaluation summary is empty")
	}
	return ev, nil
}

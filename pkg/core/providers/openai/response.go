package openai

import (
	"encoding/json"
	"fmt"

	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

// chatResponse is the OpenAI Chat Completions response format.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
			Refusal *string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens        int `json:"prompt_tokens"`
		CompletionTokens    int `json:"completion_tokens"`
		TotalTokens         int `json:"total_tokens"`
		PromptTokensDetails *struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details,omitempty"`
	} `json:"usage"`
}

// parseResponse extracts the first choice's text and the usage counters.
// A refusal is returned as text so the caller's decoder rejects it.
func (p *Provider) parseResponse(body []byte) (string, types.Usage, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", types.Usage{}, fmt.Errorf("unmarshal response: %w", err)
	}

	usage := types.Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	if d := resp.Usage.PromptTokensDetails; d != nil && d.CachedTokens > 0 {
		cached := d.CachedTokens
		usage.CacheReadTokens = &cached
	}

	if len(resp.Choices) == 0 {
		return "", usage, fmt.Errorf("no choices in response")
	}

	msg := resp.Choices[0].Message
	switch {
	case msg.Content != nil:
		return *msg.Content, usage, nil
	case msg.Refusal != nil:
		return *msg.Refusal, usage, nil
	default:
		return "", usage, nil
	}
}

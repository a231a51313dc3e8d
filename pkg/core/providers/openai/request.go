package openai

import (
	"encoding/json"

	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

// chatRequest is the OpenAI Chat Completions API request format.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      *int            `json:"max_completion_tokens,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// chatMessage is a single message in OpenAI format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat specifies structured output format.
type responseFormat struct {
	Type       string      `json:"type"` // "json_schema"
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

// jsonSchema is the schema for structured output.
type jsonSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

// buildRequest lays out system prompt, prior history and the new user
// message, and pins the reply to schema.
func (p *Provider) buildRequest(system string, history []types.Message, user, schemaName string, schema json.RawMessage) *chatRequest {
	maxTokens := p.maxTokens
	temperature := p.temperature

	messages := make([]chatMessage, 0, len(history)+2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	for _, m := range history {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, chatMessage{Role: types.RoleUser, Content: user})

	req := &chatRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}
	if len(schema) > 0 {
		req.ResponseFormat = &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		}
	}
	return req
}

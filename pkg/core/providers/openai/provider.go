// Package openai implements the dialogue and evaluation policies on the
// OpenAI Chat Completions API using structured (json_schema) output.
package openai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vango-go/vai-recruiter/pkg/core/policy"
	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultMaxTokens is the default max tokens if not specified.
	DefaultMaxTokens = 1024

	// DefaultTemperature matches the conversational tone the prompts are tuned for.
	DefaultTemperature = 0.3
)

// Provider calls one OpenAI model. Use separate providers for the interview
// and evaluation stages when they run on different models.
type Provider struct {
	name                string
	apiKey              string
	model               string
	baseURL             string
	chatCompletionsPath string
	httpClient          *http.Client
	maxTokens           int
	temperature         float64
	extraHeaders        map[string]string
}

var (
	_ policy.Dialogue  = (*Provider)(nil)
	_ policy.Evaluator = (*Provider)(nil)
)

// New creates a new OpenAI provider for model (without the "openai/" prefix).
func New(apiKey, model string, opts ...Option) *Provider {
	p := &Provider{
		name:                "openai",
		apiKey:              apiKey,
		model:               model,
		baseURL:             DefaultBaseURL,
		chatCompletionsPath: "/chat/completions",
		httpClient:          &http.Client{},
		maxTokens:           DefaultMaxTokens,
		temperature:         DefaultTemperature,
		extraHeaders:        make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Model returns the canonical "<provider>/<model>" identifier used for pricing.
func (p *Provider) Model() string {
	return p.Name() + "/" + p.model
}

// Generate runs one interview turn.
func (p *Provider) Generate(ctx context.Context, prompt string, history []types.Message) (policy.Generation, error) {
	req := p.buildRequest(policy.InterviewPrompt, history, prompt, "turn_result", policy.TurnSchema)

	respBody, err := p.doRequest(ctx, req)
	if err != nil {
		return policy.Generation{}, err
	}

	text, usage, err := p.parseResponse(respBody)
	if err != nil {
		return policy.Generation{}, err
	}

	return policy.Generation{
		Raw:     text,
		History: policy.AppendTurn(history, prompt, text),
		Usage:   usage,
		Model:   p.Model(),
	}, nil
}

// Evaluate scores a finished transcript.
func (p *Provider) Evaluate(ctx context.Context, transcript string) (policy.Assessment, error) {
	req := p.buildRequest(policy.EvaluationPrompt, nil, transcript, "evaluation", policy.EvaluationSchema)

	respBody, err := p.doRequest(ctx, req)
	if err != nil {
		return policy.Assessment{}, err
	}

	text, usage, err := p.parseResponse(respBody)
	if err != nil {
		return policy.Assessment{}, err
	}

	ev, err := policy.DecodeEvaluation(text)
	if err != nil {
		return policy.Assessment{Usage: usage, Model: p.Model()}, fmt.Errorf("openai evaluation: %w", err)
	}
	return policy.Assessment{Evaluation: ev, Usage: usage, Model: p.Model()}, nil
}

// Package gemini implements the dialogue and evaluation policies on the
// Google Gemini API through the official genai SDK.
package gemini

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/vango-go/vai-recruiter/pkg/core"
	"github.com/vango-go/vai-recruiter/pkg/core/policy"
	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

const (
	// DefaultMaxTokens is the default max tokens if not specified.
	DefaultMaxTokens = 1024

	DefaultTemperature = 0.3
)

// Provider calls one Gemini model.
type Provider struct {
	client      *genai.Client
	model       string
	baseURL     string
	httpClient  *http.Client
	maxTokens   int32
	temperature float32
}

var (
	_ policy.Dialogue  = (*Provider)(nil)
	_ policy.Evaluator = (*Provider)(nil)
)

// New creates a Gemini provider for model (without the "gemini/" prefix).
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Provider, error) {
	p := &Provider{
		model:       model,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(p)
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	p.client = client
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "gemini"
}

// Model returns the canonical "gemini/<model>" identifier used for pricing.
func (p *Provider) Model() string {
	return p.Name() + "/" + p.model
}

// Generate runs one interview turn.
func (p *Provider) Generate(ctx context.Context, prompt string, history []types.Message) (policy.Generation, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		contents = append(contents, genai.NewContentFromText(m.Content, roleFor(m.Role)))
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	text, usage, err := p.generate(ctx, policy.InterviewPrompt, contents, turnSchema)
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
	contents := []*genai.Content{genai.NewContentFromText(transcript, genai.RoleUser)}

	text, usage, err := p.generate(ctx, policy.EvaluationPrompt, contents, evaluationSchema)
	if err != nil {
		return policy.Assessment{}, err
	}
	ev, err := policy.DecodeEvaluation(text)
	if err != nil {
		return policy.Assessment{Usage: usage, Model: p.Model()}, fmt.Errorf("gemini evaluation: %w", err)
	}
	return policy.Assessment{Evaluation: ev, Usage: usage, Model: p.Model()}, nil
}

func (p *Provider) generate(ctx context.Context, system string, contents []*genai.Content, schema *genai.Schema) (string, types.Usage, error) {
	temperature := p.temperature
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       &temperature,
		MaxOutputTokens:   p.maxTokens,
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", types.Usage{}, core.NewProviderError(p.Name(), err)
	}
	return resp.Text(), usageFrom(resp.UsageMetadata), nil
}

func roleFor(role string) genai.Role {
	if role == types.RoleAssistant {
		return genai.RoleModel
	}
	return genai.RoleUser
}

func usageFrom(md *genai.GenerateContentResponseUsageMetadata) types.Usage {
	if md == nil {
		return types.Usage{}
	}
	u := types.Usage{
		InputTokens:  int(md.PromptTokenCount),
		OutputTokens: int(md.CandidatesTokenCount),
		TotalTokens:  int(md.TotalTokenCount),
	}
	if md.CachedContentTokenCount > 0 {
		cached := int(md.CachedContentTokenCount)
		u.CacheReadTokens = &cached
	}
	return u
}

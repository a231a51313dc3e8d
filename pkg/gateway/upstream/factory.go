// Package upstream builds model policies from "provider/model" strings.
package upstream

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vango-go/vai-recruiter/pkg/core"
	"github.com/vango-go/vai-recruiter/pkg/core/policy"
	"github.com/vango-go/vai-recruiter/pkg/core/providers/gemini"
	"github.com/vango-go/vai-recruiter/pkg/core/providers/openai"
)

// Model is a provider bound to one model. Both policies are served by the
// same request shape, so every provider implements both.
type Model interface {
	policy.Dialogue
	policy.Evaluator
	Model() string
}

// compatBaseURLs are OpenAI-compatible chat completion endpoints.
var compatBaseURLs = map[string]string{
	"openai":     openai.DefaultBaseURL,
	"groq":       "https://api.groq.com/openai/v1",
	"cerebras":   "https://api.cerebras.ai/v1",
	"openrouter": "https://openrouter.ai/api/v1",
}

type Factory struct {
	HTTPClient *http.Client
	// APIKeys maps provider name to its API key.
	APIKeys map[string]string
	// BaseURLs overrides the default endpoint per provider.
	BaseURLs map[string]string
}

// New resolves model ("openai/gpt-4.1-mini", "gemini/gemini-2.5-flash", ...).
func (f Factory) New(ctx context.Context, model string) (Model, error) {
	providerName, modelName, err := core.ParseModelString(model)
	if err != nil {
		return nil, err
	}

	client := f.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	apiKey := f.APIKeys[providerName]
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", providerName)
	}

	if base, ok := compatBaseURLs[providerName]; ok {
		if override := f.BaseURLs[providerName]; override != "" {
			base = override
		}
		return openai.New(apiKey, modelName,
			openai.WithName(providerName),
			openai.WithBaseURL(base),
			openai.WithHTTPClient(client),
		), nil
	}

	switch providerName {
	case "gemini":
		return gemini.New(ctx, apiKey, modelName,
			gemini.WithBaseURL(f.BaseURLs[providerName]),
			gemini.WithHTTPClient(client),
		)
	default:
		return nil, fmt.Errorf("unknown provider %q", providerName)
	}
}

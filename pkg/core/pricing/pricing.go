// Package pricing converts token usage into USD cost from a per-model price
// table.
package pricing

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

//go:embed prices.yaml
var defaultYAML []byte

// ErrUnknownModel is returned when a model has no price entry.
var ErrUnknownModel = errors.New("pricing: unknown model")

// ModelPricing is the price of one model in USD per million tokens. Cached
// input tokens fall back to the input price when no cached price is set.
type ModelPricing struct {
	InputPerMillion       float64 `yaml:"input_per_million"`
	CachedInputPerMillion float64 `yaml:"cached_input_per_million"`
	OutputPerMillion      float64 `yaml:"output_per_million"`
}

// Table is a price list keyed by "provider/model".
type Table struct {
	Currency string                  `yaml:"currency"`
	Models   map[string]ModelPricing `yaml:"models"`
}

// Default returns the embedded price table.
func Default() (*Table, error) {
	return Parse(defaultYAML)
}

// Load reads a price table from path; an empty path returns the default.
func Load(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML price table.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse pricing: %w", err)
	}
	if len(t.Models) == 0 {
		return nil, fmt.Errorf("pricing table has no models")
	}
	for model, p := range t.Models {
		if p.InputPerMillion < 0 || p.OutputPerMillion < 0 || p.CachedInputPerMillion < 0 {
			return nil, fmt.Errorf("pricing for %q must not be negative", model)
		}
	}
	if t.Currency == "" {
		t.Currency = "USD"
	}
	return &t, nil
}

// Cost prices one stage's usage. Dated model snapshots such as
// "openai/gpt-4.1-mini-2025-04-14" resolve to their base entry.
func (t *Table) Cost(model string, usage types.Usage) (*types.LLMCost, error) {
	p, ok := t.lookup(model)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}

	cached := 0
	if usage.CacheReadTokens != nil {
		cached = min(*usage.CacheReadTokens, usage.InputTokens)
	}
	cachedPrice := p.CachedInputPerMillion
	if cachedPrice == 0 {
		cachedPrice = p.InputPerMillion
	}

	prompt := (float64(usage.InputTokens-cached)*p.InputPerMillion + float64(cached)*cachedPrice) / 1e6
	completion := float64(usage.OutputTokens) * p.OutputPerMillion / 1e6
	return &types.LLMCost{
		PromptCost:     round6(prompt),
		CompletionCost: round6(completion),
		TotalCost:      round6(prompt + completion),
	}, nil
}

// StageCost prices a stage, returning nil for a stage that made no calls.
func (t *Table) StageCost(s *types.StageUsage) (*types.LLMCost, error) {
	if s == nil || (s.Calls == 0 && s.Usage.IsEmpty()) {
		return nil, nil
	}
	return t.Cost(s.Model, s.Usage)
}

func (t *Table) lookup(model string) (ModelPricing, bool) {
	if p, ok := t.Models[model]; ok {
		return p, true
	}
	// Longest registered prefix followed by a "-" suffix.
	best := ""
	for name := range t.Models {
		if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return ModelPricing{}, false
	}
	return t.Models[best], true
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

package pricing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

func TestDefault_HasConfiguredModels(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)
	require.Equal(t, "USD", table.Currency)
	require.Contains(t, table.Models, "openai/gpt-4.1-mini")
	require.Contains(t, table.Models, "gemini/gemini-2.5-flash")
}

func TestCost(t *testing.T) {
	table, err := Parse([]byte(`
models:
  openai/test-model:
    input_per_million: 2
    cached_input_per_million: 0.5
    output_per_million: 8
  gemini/no-cache:
    input_per_million: 1
    output_per_million: 4
`))
	require.NoError(t, err)

	cached := 200_000
	cost, err := table.Cost("openai/test-model", types.Usage{
		InputTokens:     1_000_000,
		OutputTokens:    500_000,
		CacheReadTokens: &cached,
	})
	require.NoError(t, err)
	// 800k * 2 + 200k * 0.5 = 1.7; 500k * 8 = 4
	require.InDelta(t, 1.7, cost.PromptCost, 1e-9)
	require.InDelta(t, 4.0, cost.CompletionCost, 1e-9)
	require.InDelta(t, 5.7, cost.TotalCost, 1e-9)

	cost, err = table.Cost("gemini/no-cache", types.Usage{InputTokens: 1000, CacheReadTokens: &cached})
	require.NoError(t, err)
	require.InDelta(t, 0.001, cost.PromptCost, 1e-9, "cached tokens are clamped to input and priced at the input rate")
}

func TestCost_DatedSnapshotResolvesToBase(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	base, err := table.Cost("openai/gpt-4.1-mini", types.Usage{InputTokens: 1000, OutputTokens: 1000})
	require.NoError(t, err)
	dated, err := table.Cost("openai/gpt-4.1-mini-2025-04-14", types.Usage{InputTokens: 1000, OutputTokens: 1000})
	require.NoError(t, err)
	require.Equal(t, base, dated)
}

func TestCost_UnknownModel(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	_, err = table.Cost("acme/unknown", types.Usage{InputTokens: 1})
	require.True(t, errors.Is(err, ErrUnknownModel), "err=%v", err)
}

func TestStageCost_SkipsUnusedStage(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	cost, err := table.StageCost(nil)
	require.NoError(t, err)
	require.Nil(t, cost)

	cost, err = table.StageCost(&types.StageUsage{})
	require.NoError(t, err)
	require.Nil(t, cost)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.yaml")
	require.NoError(t, os.WriteFile(path, []byte("currency: EUR\nmodels:\n  openai/x:\n    input_per_million: 1\n    output_per_million: 1\n"), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "EUR", table.Currency)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Parse([]byte("models:\n  openai/x:\n    input_per_million: -1\n"))
	require.Error(t, err)
}

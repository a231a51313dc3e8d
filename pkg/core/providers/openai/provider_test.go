package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vango-go/vai-recruiter/pkg/core"
	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

func TestGenerate_SendsSchemaAndHistory(t *testing.T) {
	var gotPath string
	var gotAuth string
	var gotBody chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id":"chatcmpl_1",
			"model":"gpt-4.1-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"agent_response\":\"Hi!\",\"turn_outcome\":\"NORMAL\",\"turn_outcome_reasoning\":\"greeting\"}"}}],
			"usage":{"prompt_tokens":120,"completion_tokens":20,"total_tokens":140,"prompt_tokens_details":{"cached_tokens":64}}
		}`)
	}))
	defer server.Close()

	p := New("test-key", "gpt-4.1-mini", WithBaseURL(server.URL))
	history := []types.Message{
		{Role: types.RoleUser, Content: "earlier"},
		{Role: types.RoleAssistant, Content: "reply"},
	}

	gen, err := p.Generate(t.Context(), "Candidate: \"hello\"", history)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if gotPath != "/chat/completions" {
		t.Fatalf("path = %q, want /chat/completions", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if len(gotBody.Messages) != 4 || gotBody.Messages[0].Role != "system" || gotBody.Messages[3].Content != "Candidate: \"hello\"" {
		t.Fatalf("messages = %+v", gotBody.Messages)
	}
	if gotBody.ResponseFormat == nil || gotBody.ResponseFormat.JSONSchema == nil || gotBody.ResponseFormat.JSONSchema.Name != "turn_result" {
		t.Fatalf("response_format = %+v", gotBody.ResponseFormat)
	}

	if gen.Model != "openai/gpt-4.1-mini" {
		t.Fatalf("model = %q", gen.Model)
	}
	if gen.Usage.TotalTokens != 140 || gen.Usage.CacheReadTokens == nil || *gen.Usage.CacheReadTokens != 64 {
		t.Fatalf("usage = %+v", gen.Usage)
	}
	if len(gen.History) != 4 || gen.History[3].Role != types.RoleAssistant || gen.History[3].Content != gen.Raw {
		t.Fatalf("history = %+v", gen.History)
	}
	if len(history) != 2 {
		t.Fatalf("input history was modified")
	}
}

func TestEvaluate_DecodesScorecard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"scorecard\":{\"system_design\":3,\"hands_on_coding\":4,\"communication\":5,\"confidence\":4,\"ownership\":3,\"problem_solving\":4},\"summary\":\"Solid.\",\"recommendation\":\"Recommend\"}"}}],
			"usage":{"prompt_tokens":900,"completion_tokens":100,"total_tokens":1000}
		}`)
	}))
	defer server.Close()

	p := New("test-key", "gpt-4.1", WithBaseURL(server.URL))
	a, err := p.Evaluate(t.Context(), "candidate: hi\nagent: hello")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if a.Evaluation.Recommendation != types.Recommend || a.Evaluation.Scorecard.Communication != 5 {
		t.Fatalf("evaluation = %+v", a.Evaluation)
	}
	if a.Usage.InputTokens != 900 {
		t.Fatalf("usage = %+v", a.Usage)
	}
}

func TestGenerate_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down","type":"rate_limit_error","code":"rate_limit_exceeded"}}`)
	}))
	defer server.Close()

	p := New("test-key", "gpt-4.1-mini", WithBaseURL(server.URL))
	_, err := p.Generate(t.Context(), "hi", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		t.Fatalf("error type = %T, want *core.Error", err)
	}
	if coreErr.Type != core.ErrProvider || coreErr.Code != "rate_limit_exceeded" {
		t.Fatalf("error = %+v", coreErr)
	}
}

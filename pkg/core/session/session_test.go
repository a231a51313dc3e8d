package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

func TestSession_AppendAlternates(t *testing.T) {
	s := newTestSession("call-1")

	if err := s.Append(types.TranscriptEntry{Speaker: types.SpeakerAgent, Text: "hi"}); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("agent-first append err=%v, want ErrOutOfTurn", err)
	}
	if err := s.Append(types.TranscriptEntry{Speaker: types.SpeakerCandidate, Text: "hello"}); err != nil {
		t.Fatalf("candidate append: %v", err)
	}
	if err := s.Append(types.TranscriptEntry{Speaker: types.SpeakerCandidate, Text: "again"}); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("double candidate append err=%v, want ErrOutOfTurn", err)
	}
	if err := s.Append(types.TranscriptEntry{Speaker: types.SpeakerAgent, Text: "hi there"}); err != nil {
		t.Fatalf("agent append: %v", err)
	}

	tr := s.Transcript()
	if len(tr) != 2 {
		t.Fatalf("transcript len=%d, want 2", len(tr))
	}
	tr[0].Text = "mutated"
	if s.Transcript()[0].Text != "hello" {
		t.Fatalf("Transcript must return a copy")
	}
}

func TestSession_BeginFinalize_OnceUnderRace(t *testing.T) {
	s := newTestSession("call-1")
	var admitted atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if s.BeginFinalize() {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if admitted.Load() != 1 {
		t.Fatalf("admitted=%d, want 1", admitted.Load())
	}
	if !s.Finalizing() {
		t.Fatalf("Finalizing()=false after admission")
	}
}

func TestSession_ElapsedNeverNegative(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := New("call-1", types.Candidate{}, "", start)

	if got := s.Elapsed(start.Add(-time.Minute)); got != 0 {
		t.Fatalf("Elapsed before start=%v, want 0", got)
	}
	if got := s.Elapsed(start.Add(90 * time.Second)); got != 90*time.Second {
		t.Fatalf("Elapsed=%v, want 90s", got)
	}
}

func TestSession_HistoryAndUsage(t *testing.T) {
	s := newTestSession("call-1")
	h := []types.Message{{Role: types.RoleUser, Content: "hi"}}
	s.SetHistory(h)
	h[0].Content = "mutated"
	if got := s.History(); len(got) != 1 || got[0].Content != "hi" {
		t.Fatalf("History()=%v, want isolated copy", got)
	}

	s.RecordUsage(types.StageInterview, "openai/gpt-4.1-mini", types.Usage{InputTokens: 10, TotalTokens: 10})
	s.RecordUsage(types.StageInterview, "openai/gpt-4.1-mini", types.Usage{InputTokens: 5, TotalTokens: 5})
	u := s.Usage(types.StageInterview)
	if u.Calls != 2 || u.Usage.InputTokens != 15 {
		t.Fatalf("usage=%+v, want 2 calls / 15 input tokens", u)
	}
	if got := s.Usage(types.StageEvaluation); got.Calls != 0 {
		t.Fatalf("evaluation usage=%+v, want zero", got)
	}
}

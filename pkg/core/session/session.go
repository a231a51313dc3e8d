package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

// ErrOutOfTurn is returned when an append would break the strict
// candidate/agent alternation of a transcript.
var ErrOutOfTurn = errors.New("transcript entry out of turn")

// Session is the live state of one call.
//
// Turns for a call are assumed to be delivered serially by the voice
// gateway; the internal mutex only keeps concurrent readers (finalization,
// monitor) from observing a half-appended slice.
type Session struct {
	ID          string
	CandidateID string
	Candidate   types.Candidate
	StartedAt   time.Time
	ControlURL  string

	mu         sync.Mutex
	history    []types.Message
	transcript []types.TranscriptEntry
	usage      map[types.Stage]types.StageUsage

	finalizing atomic.Bool
}

func New(id string, candidate types.Candidate, controlURL string, startedAt time.Time) *Session {
	return &Session{
		ID:          id,
		CandidateID: candidate.Profile.CandidateID,
		Candidate:   candidate,
		StartedAt:   startedAt.UTC(),
		ControlURL:  controlURL,
		usage:       make(map[types.Stage]types.StageUsage),
	}
}

// Elapsed is the wall-clock time since the session started, never negative.
func (s *Session) Elapsed(now time.Time) time.Duration {
	d := now.Sub(s.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

func (s *Session) History() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.CloneMessages(s.history)
}

// SetHistory replaces the conversation history with the policy's view.
func (s *Session) SetHistory(history []types.Message) {
	s.mu.Lock()
	s.history = types.CloneMessages(history)
	s.mu.Unlock()
}

// Append adds an entry to the transcript. The first entry must come from the
// candidate and speakers must alternate afterwards.
func (s *Session) Append(entry types.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := types.SpeakerCandidate
	if n := len(s.transcript); n > 0 && s.transcript[n-1].Speaker == types.SpeakerCandidate {
		want = types.SpeakerAgent
	}
	if entry.Speaker != want {
		return fmt.Errorf("%w: got %s, want %s", ErrOutOfTurn, entry.Speaker, want)
	}
	s.transcript = append(s.transcript, entry)
	return nil
}

// Transcript returns a copy of the transcript in append order.
func (s *Session) Transcript() []types.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.TranscriptEntry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Session) RecordUsage(stage types.Stage, model string, u types.Usage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usage == nil {
		s.usage = make(map[types.Stage]types.StageUsage)
	}
	su := s.usage[stage]
	su.Record(model, u)
	s.usage[stage] = su
}

func (s *Session) Usage(stage types.Stage) types.StageUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage[stage]
}

// BeginFinalize flips the finalizing flag from false to true. Only the
// caller that observes true may run finalization.
func (s *Session) BeginFinalize() bool {
	return s.finalizing.CompareAndSwap(false, true)
}

func (s *Session) Finalizing() bool {
	return s.finalizing.Load()
}

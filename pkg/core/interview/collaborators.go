package interview

import (
	"context"
	"time"

	"github.com/vango-go/vai-recruiter/pkg/core/types"
	"github.com/vango-go/vai-recruiter/pkg/core/voicegw"
)

// VoiceGateway places and ends calls. EndCall returns voicegw.ErrCallEnded
// when the call is already over.
type VoiceGateway interface {
	StartCall(ctx context.Context, candidateID, phone, greeting string) (voicegw.Call, error)
	EndCall(ctx context.Context, controlURL string) error
	GetCall(ctx context.Context, callID string) (voicegw.Call, error)
}

// Repository is the candidate store. Lookups that find nothing return
// core.ErrCandidateNotFound or core.ErrCallNotBound.
type Repository interface {
	GetCandidate(ctx context.Context, candidateID string) (types.Candidate, error)
	// UpdateCandidate writes only the non-nil fields of u.
	UpdateCandidate(ctx context.Context, u types.CandidateUpdate) error
	BindCall(ctx context.Context, b types.CallBinding) error
	CallBinding(ctx context.Context, callID string) (types.CallBinding, error)
	// UpsertFromBooking matches an existing candidate by phone, then email,
	// and returns its id, creating the candidate when none matches.
	UpsertFromBooking(ctx context.Context, b types.Booking) (string, error)
}

// Publisher emits domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, eventType, correlationID string, data any) error
}

// EventType names a monitor event.
type EventType string

const (
	EventSessionStarted      EventType = "session.started"
	EventTranscript          EventType = "transcript.entry"
	EventFinalizationStarted EventType = "finalization.started"
	EventFinalizationDone    EventType = "finalization.finished"
)

// Event is a live notification for operators watching interviews.
type Event struct {
	Type        EventType              `json:"type"`
	SessionID   string                 `json:"session_id"`
	CandidateID string                 `json:"candidate_id,omitempty"`
	Entry       *types.TranscriptEntry `json:"entry,omitempty"`
	Outcome     types.TurnOutcome      `json:"outcome,omitempty"`
	Task        *TaskStatus            `json:"task,omitempty"`
	At          time.Time              `json:"at"`
}

// Broadcaster fans events out to monitors. Broadcast must not block.
type Broadcaster interface {
	Broadcast(ev Event)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(Event) {}

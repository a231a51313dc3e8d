package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vango-go/vai-recruiter/pkg/core"
	"github.com/vango-go/vai-recruiter/pkg/core/session"
	"github.com/vango-go/vai-recruiter/pkg/core/types"
)

// StartResult identifies a freshly placed interview call.
type StartResult struct {
	CallID      string `json:"call_id"`
	CandidateID string `json:"candidate_id"`
	ControlURL  string `json:"control_url"`
}

// Starter places the interview call for a candidate and opens its session.
type Starter struct {
	Repo        Repository
	Gateway     VoiceGateway
	Sessions    *session.Registry
	Broadcaster Broadcaster
	Logger      *slog.Logger
	Now         func() time.Time
}

// Greeting is the first thing the agent says when the candidate picks up.
func Greeting(name string) string {
	return "Hello.. am I speaking with " + strings.TrimSpace(name)
}

// Start places the call. A gateway failure is returned and no session is
// created; failures after the call is placed are logged only, because the
// candidate's phone is already ringing.
func (st *Starter) Start(ctx context.Context, candidateID string) (StartResult, error) {
	logger := st.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if st.Now != nil {
		now = st.Now
	}
	logger = logger.With("candidate_id", candidateID)

	if strings.TrimSpace(candidateID) == "" {
		return StartResult{}, core.NewInvalidRequestErrorWithParam("candidate id is required", "candidate_id")
	}

	candidate, err := st.Repo.GetCandidate(ctx, candidateID)
	if err != nil {
		return StartResult{}, fmt.Errorf("start interview: %w", err)
	}
	if candidate.Profile.Phone == "" {
		return StartResult{}, core.NewInvalidRequestErrorWithParam("candidate has no phone number", "phone")
	}

	call, err := st.Gateway.StartCall(ctx, candidateID, candidate.Profile.Phone, Greeting(candidate.Profile.Name))
	if err != nil {
		return StartResult{}, fmt.Errorf("start interview: %w", err)
	}
	startedAt := now().UTC()
	logger = logger.With("session_id", call.ID)

	if err := st.Repo.BindCall(ctx, types.CallBinding{
		CallID:      call.ID,
		CandidateID: candidateID,
		ControlURL:  call.ControlURL,
		StartedAt:   startedAt,
	}); err != nil {
		logger.Error("bind call to candidate", "error", err)
	}
	if err := st.Repo.UpdateCandidate(ctx, types.CandidateUpdate{
		CandidateID: candidateID,
		Status:      types.StatusPtr(types.StatusInProgress),
	}); err != nil {
		logger.Error("mark interview in progress", "error", err)
	}

	if candidate.Profile.CandidateID == "" {
		candidate.Profile.CandidateID = candidateID
	}
	s := session.New(call.ID, candidate, call.ControlURL, startedAt)
	if err := st.Sessions.Create(s); err != nil {
		// A turn webhook may have hydrated the session first.
		logger.Warn("session already present", "error", err)
	}

	if st.Broadcaster != nil {
		st.Broadcaster.Broadcast(Event{
			Type:        EventSessionStarted,
			SessionID:   call.ID,
			CandidateID: candidateID,
			At:          startedAt,
		})
	}
	logger.Info("interview call started")

	return StartResult{CallID: call.ID, CandidateID: candidateID, ControlURL: call.ControlURL}, nil
}

// Fire adapts Start to the scheduler's trigger signature.
func (st *Starter) Fire(ctx context.Context, candidateID string) error {
	_, err := st.Start(ctx, candidateID)
	return err
}

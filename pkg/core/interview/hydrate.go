package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vango-go/vai-recruiter/pkg/core"
	"github.com/vango-go/vai-recruiter/pkg/core/session"
)

// Hydrator rebuilds a session for a call this process has no state for,
// e.g. after a restart. The candidate comes from the call binding persisted
// at start time, then from the gateway's call metadata. A call bound to
// neither is rejected with core.ErrCallNotBound.
type Hydrator struct {
	Repo    Repository
	Gateway VoiceGateway
	Logger  *slog.Logger
	Now     func() time.Time
}

// Hydrate implements session.HydrateFunc.
func (h *Hydrator) Hydrate(ctx context.Context, callID string) (*session.Session, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	binding, err := h.Repo.CallBinding(ctx, callID)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrCallNotBound):
		if h.Gateway == nil {
			return nil, err
		}
		call, gerr := h.Gateway.GetCall(ctx, callID)
		if gerr != nil {
			return nil, fmt.Errorf("hydrate %s: get call: %w", callID, gerr)
		}
		if call.CandidateID == "" {
			return nil, fmt.Errorf("hydrate %s: %w", callID, core.ErrCallNotBound)
		}
		binding.CallID = callID
		binding.CandidateID = call.CandidateID
		binding.ControlURL = call.ControlURL
		logger.Warn("session hydrated from gateway metadata", "session_id", callID, "candidate_id", call.CandidateID)
	default:
		return nil, fmt.Errorf("hydrate %s: %w", callID, err)
	}

	candidate, err := h.Repo.GetCandidate(ctx, binding.CandidateID)
	if err != nil {
		return nil, fmt.Errorf("hydrate %s: %w", callID, err)
	}

	startedAt := binding.StartedAt
	if startedAt.IsZero() {
		startedAt = now()
	}
	logger.Info("session hydrated", "session_id", callID, "candidate_id", binding.CandidateID)
	return session.New(callID, candidate, binding.ControlURL, startedAt), nil
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vango-go/vai-recruiter/pkg/core"
	"github.com/vango-go/vai-recruiter/pkg/core/interview"
	"github.com/vango-go/vai-recruiter/pkg/core/session"
)

// AssistantEndedReason is the gateway's reason when our own end-call
// request hung up; finalization is already running in that case.
const AssistantEndedReason = "assistant-ended-call-after-message-spoken"

type FinalizationTrigger interface {
	Trigger(s *session.Session, externallyTriggered bool) (*interview.Task, bool)
}

// CallEventsHandler turns gateway hang-up notifications into externally
// triggered finalization.
type CallEventsHandler struct {
	Sessions  *session.Registry
	Finalizer FinalizationTrigger
	Logger    *slog.Logger
}

type callEvent struct {
	Message struct {
		Type        string `json:"type"`
		Status      string `json:"status"`
		EndedReason string `json:"endedReason"`
		Call        struct {
			ID string `json:"id"`
		} `json:"call"`
	} `json:"message"`
}

type callEventResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id,omitempty"`
}

func (h CallEventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var ev callEvent
	if err := decodeJSON(r, &ev); err != nil {
		writeError(w, r, err)
		return
	}
	msg := ev.Message

	ended := msg.Type == "end-of-call-report" || (msg.Type == "status-update" && msg.Status == "ended")
	if !ended {
		writeJSON(w, http.StatusOK, callEventResponse{Status: "ignored"})
		return
	}
	callID := strings.TrimSpace(msg.Call.ID)
	if callID == "" {
		writeError(w, r, core.NewInvalidRequestErrorWithParam("message.call.id is required", "message.call.id"))
		return
	}
	logger = logger.With("session_id", callID, "ended_reason", msg.EndedReason)
	if msg.EndedReason == AssistantEndedReason {
		logger.Debug("call ended by assistant")
		writeJSON(w, http.StatusOK, callEventResponse{Status: "ignored"})
		return
	}

	s, err := h.Sessions.Get(callID)
	if errors.Is(err, session.ErrNotFound) {
		// Already finalized and released, or never ours.
		logger.Info("call ended for unknown session")
		writeJSON(w, http.StatusOK, callEventResponse{Status: "unknown_session"})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	task, started := h.Finalizer.Trigger(s, true)
	resp := callEventResponse{Status: "finalizing"}
	if !started {
		resp.Status = "already_finalizing"
	}
	if task != nil {
		resp.TaskID = task.ID
	}
	logger.Info("call ended", "status", resp.Status)
	writeJSON(w, http.StatusOK, resp)
}

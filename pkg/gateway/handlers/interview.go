package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/vango-go/vai-recruiter/pkg/core"
	"github.com/vango-go/vai-recruiter/pkg/core/interview"
	"github.com/vango-go/vai-recruiter/pkg/scheduler"
)

type InterviewStarter interface {
	Start(ctx context.Context, candidateID string) (interview.StartResult, error)
}

// StartHandler places an interview call right away.
type StartHandler struct {
	Starter InterviewStarter
}

func (h StartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	candidateID := strings.TrimSpace(r.PathValue("candidateID"))
	if candidateID == "" {
		writeError(w, r, core.NewInvalidRequestErrorWithParam("candidate id is required", "candidateID"))
		return
	}
	res, err := h.Starter.Start(r.Context(), candidateID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		interview.StartResult
	}{"call_started", res})
}

type FinalizationTasks interface {
	Task(sessionID string) *interview.Task
	Retry(ctx context.Context, sessionID string) (*interview.Task, error)
}

// FinalizationHandler reports on and retries a session's finalization.
type FinalizationHandler struct {
	Tasks FinalizationTasks
}

func (h FinalizationHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t := h.Tasks.Task(id)
	if t == nil {
		writeError(w, r, interview.ErrNoTask)
		return
	}
	writeJSON(w, http.StatusOK, t.Status())
}

func (h FinalizationHandler) Retry(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tasks.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, t.Status())
}

type PendingJobs interface {
	Pending(ctx context.Context) ([]scheduler.Job, error)
}

// JobsHandler lists scheduled, not yet fired interview calls.
type JobsHandler struct {
	Jobs PendingJobs
}

func (h JobsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Jobs.Pending(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []scheduler.Job{}
	}
	writeJSON(w, http.StatusOK, struct {
		Jobs []scheduler.Job `json:"jobs"`
	}{jobs})
}

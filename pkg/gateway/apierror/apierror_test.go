package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/vango-go/vai-recruiter/pkg/core"
	"github.com/vango-go/vai-recruiter/pkg/core/interview"
	"github.com/vango-go/vai-recruiter/pkg/core/session"
)

func TestFromError_ContextCanceled_Is408Cancelled(t *testing.T) {
	ce, status := FromError(context.Canceled, "req_test")
	if status != 408 {
		t.Fatalf("status=%d", status)
	}
	if ce.Type != core.ErrAPI {
		t.Fatalf("type=%q", ce.Type)
	}
	if ce.Code != "cancelled" {
		t.Fatalf("code=%q", ce.Code)
	}
	if ce.RequestID != "req_test" {
		t.Fatalf("request_id=%q", ce.RequestID)
	}
}

func TestFromError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    core.ErrorType
		code   string
	}{
		{"invalid request", core.NewInvalidRequestError("bad"), http.StatusBadRequest, core.ErrInvalidRequest, ""},
		{"conflict", core.NewConflictError("late"), http.StatusConflict, core.ErrConflict, ""},
		{"provider", core.NewProviderError("voicegw", errors.New("down")), http.StatusBadGateway, core.ErrProvider, ""},
		{"wrapped candidate", fmt.Errorf("start: %w", fmt.Errorf("%w: C9", core.ErrCandidateNotFound)), http.StatusNotFound, core.ErrNotFound, "candidate_not_found"},
		{"unbound call", fmt.Errorf("%w: call-1", core.ErrCallNotBound), http.StatusNotFound, core.ErrNotFound, "call_not_bound"},
		{"session", session.ErrNotFound, http.StatusNotFound, core.ErrNotFound, "session_not_found"},
		{"no task", interview.ErrNoTask, http.StatusNotFound, core.ErrNotFound, "no_finalization_task"},
		{"task running", interview.ErrTaskRunning, http.StatusConflict, core.ErrConflict, "finalization_running"},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, core.ErrAPI, ""},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, core.ErrInvalidRequest, ""},
		{"unknown", errors.New("secret detail"), http.StatusInternalServerError, core.ErrAPI, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce, status := FromError(tt.err, "req_1")
			if status != tt.status {
				t.Fatalf("status=%d, want %d", status, tt.status)
			}
			if ce.Type != tt.typ {
				t.Fatalf("type=%q, want %q", ce.Type, tt.typ)
			}
			if ce.Code != tt.code {
				t.Fatalf("code=%q, want %q", ce.Code, tt.code)
			}
			if ce.RequestID != "req_1" {
				t.Fatalf("request_id=%q", ce.RequestID)
			}
		})
	}
}

func TestFromError_UnknownDoesNotLeak(t *testing.T) {
	ce, _ := FromError(errors.New("password=hunter2"), "")
	if ce.Message != "internal error" {
		t.Fatalf("message=%q", ce.Message)
	}
}

package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/vango-go/vai-recruiter/pkg/core"
	"github.com/vango-go/vai-recruiter/pkg/core/interview"
	"github.com/vango-go/vai-recruiter/pkg/core/session"
	"github.com/vango-go/vai-recruiter/pkg/scheduler"
)

type Envelope struct {
	Error *core.Error `json:"error"`
}

func FromError(err error, requestID string) (*core.Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	// Context timeouts/cancellation.
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{
			Type:      core.ErrAPI,
			Message:   "request timeout",
			RequestID: requestID,
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &core.Error{
			Type:      core.ErrAPI,
			Message:   "request cancelled",
			Code:      "cancelled",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}

	// Body over the configured limit.
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return &core.Error{
			Type:      core.ErrInvalidRequest,
			Message:   "request body too large",
			RequestID: requestID,
		}, http.StatusRequestEntityTooLarge
	}

	// Already canonical.
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		out := *coreErr
		out.RequestID = requestID
		return &out, statusFromType(coreErr.Type)
	}

	// Domain sentinels.
	for _, m := range sentinels {
		if errors.Is(err, m.err) {
			return &core.Error{
				Type:      m.typ,
				Message:   err.Error(),
				Code:      m.code,
				RequestID: requestID,
			}, statusFromType(m.typ)
		}
	}

	// Unknown errors: treat as internal API error (do not leak details by default).
	return &core.Error{
		Type:      core.ErrAPI,
		Message:   "internal error",
		RequestID: requestID,
	}, http.StatusInternalServerError
}

var sentinels = []struct {
	err  error
	typ  core.ErrorType
	code string
}{
	{session.ErrNotFound, core.ErrNotFound, "session_not_found"},
	{session.ErrAlreadyExists, core.ErrConflict, "session_exists"},
	{session.ErrOutOfTurn, core.ErrConflict, "out_of_turn"},
	{core.ErrCandidateNotFound, core.ErrNotFound, "candidate_not_found"},
	{core.ErrCallNotBound, core.ErrNotFound, "call_not_bound"},
	{interview.ErrNoTask, core.ErrNotFound, "no_finalization_task"},
	{interview.ErrTaskRunning, core.ErrConflict, "finalization_running"},
	{interview.ErrTaskSucceeded, core.ErrConflict, "finalization_succeeded"},
	{interview.ErrFinalizerClosed, core.ErrAPI, "shutting_down"},
	{scheduler.ErrInvalidJob, core.ErrInvalidRequest, "invalid_job"},
}

func statusFromType(t core.ErrorType) int {
	switch t {
	case core.ErrInvalidRequest:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrConflict:
		return http.StatusConflict
	case core.ErrRateLimit:
		return http.StatusTooManyRequests
	case core.ErrProvider:
		return http.StatusBadGateway
	case core.ErrAPI:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

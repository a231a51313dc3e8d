package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vango-go/vai-recruiter/pkg/core"
	"github.com/vango-go/vai-recruiter/pkg/core/types"
	"github.com/vango-go/vai-recruiter/pkg/gateway/calendar"
)

type BookingStore interface {
	UpsertFromBooking(ctx context.Context, b types.Booking) (string, error)
}

type JobScheduler interface {
	Schedule(ctx context.Context, candidateID, eventID string, fireAt time.Time) error
	Cancel(ctx context.Context, candidateID, eventID string) error
}

// CalendarHandler records bookings and schedules (or cancels) the call.
type CalendarHandler struct {
	// SigningKey enables signature verification when non-empty.
	SigningKey string
	Bookings   BookingStore
	Scheduler  JobScheduler
	Logger     *slog.Logger
	Now        func() time.Time
}

type calendarResponse struct {
	Status        string     `json:"status"`
	CandidateID   string     `json:"candidate_id"`
	EventID       string     `json:"event_id"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
}

func (h CalendarHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytes *http.MaxBytesError
		if !errors.As(err, &maxBytes) {
			err = core.NewInvalidRequestError("failed to read request body")
		}
		writeError(w, r, err)
		return
	}

	if h.SigningKey != "" {
		if err := calendar.VerifySignature(h.SigningKey, r.Header.Get(calendar.SignatureHeader), body, now()); err != nil {
			logger.Warn("calendar webhook rejected", "error", err)
			writeError(w, r, &core.Error{Type: core.ErrAuthentication, Message: err.Error(), Param: calendar.SignatureHeader})
			return
		}
	}

	inv, err := calendar.Parse(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger = logger.With("event", inv.Event, "event_id", inv.EventID)

	booking := types.Booking{Name: inv.Name, Email: inv.Email, Phone: inv.Phone}
	switch inv.Event {
	case calendar.InviteeCreated:
		start := inv.StartTime
		booking.ScheduledAt = &start
		booking.Status = types.StatusScheduled
	case calendar.InviteeCanceled:
		booking.Status = types.StatusCanceled
	}

	candidateID, err := h.Bookings.UpsertFromBooking(r.Context(), booking)
	if err != nil {
		logger.Error("booking upsert failed", "error", err)
		writeError(w, r, err)
		return
	}
	logger = logger.With("candidate_id", candidateID)

	resp := calendarResponse{CandidateID: candidateID, EventID: inv.EventID}
	switch inv.Event {
	case calendar.InviteeCreated:
		if err := h.Scheduler.Schedule(r.Context(), candidateID, inv.EventID, inv.StartTime); err != nil {
			logger.Error("schedule interview failed", "error", err)
			writeError(w, r, err)
			return
		}
		resp.Status = "scheduled"
		resp.ScheduledTime = &inv.StartTime
		logger.Info("interview scheduled", "fire_at", inv.StartTime)
	case calendar.InviteeCanceled:
		if err := h.Scheduler.Cancel(r.Context(), candidateID, inv.EventID); err != nil {
			logger.Error("cancel interview failed", "error", err)
			writeError(w, r, err)
			return
		}
		resp.Status = "canceled"
		logger.Info("interview canceled")
	}
	writeJSON(w, http.StatusOK, resp)
}

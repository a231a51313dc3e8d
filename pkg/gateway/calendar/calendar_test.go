package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/vango-go/vai-recruiter/pkg/core"
)

const createdBody = `{
  "event": "invitee.created",
  "payload": {
    "name": "Ada Lovelace",
    "email": "ada@example.com",
    "scheduled_event": {
      "uri": "https://api.calendly.com/scheduled_events/3d5b9b31-f5bd-40a0-95f8-79a423dba88e",
      "start_time": "2026-03-02T15:00:00.000000Z",
      "location": {"type": "outbound_call", "location": "+15550100"}
    }
  }
}`

func TestVerifySignature(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	body := []byte(createdBody)
	header := Sign("key", body, now)

	tests := []struct {
		name   string
		key    string
		header string
		body   []byte
		at     time.Time
		want   error
	}{
		{"valid", "key", header, body, now.Add(time.Minute), nil},
		{"wrong key", "other", header, body, now, ErrInvalidSignature},
		{"tampered body", "key", header, []byte(createdBody + " "), now, ErrInvalidSignature},
		{"too old", "key", header, body, now.Add(6 * time.Minute), ErrStaleTimestamp},
		{"from the future", "key", header, body, now.Add(-6 * time.Minute), ErrStaleTimestamp},
		{"no header", "key", "", body, now, ErrMissingSignature},
		{"no v1", "key", "t=1", body, now, ErrMissingSignature},
		{"bad timestamp", "key", "t=abc,v1=00", body, now, ErrInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.key, tt.header, tt.body, tt.at)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("err=%v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err=%v, want %v", err, tt.want)
			}
		})
	}
}

func TestParse_Created(t *testing.T) {
	inv, err := Parse([]byte(createdBody))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if inv.Event != InviteeCreated {
		t.Fatalf("event=%q, want %q", inv.Event, InviteeCreated)
	}
	if inv.EventID != "3d5b9b31-f5bd-40a0-95f8-79a423dba88e" {
		t.Fatalf("event id=%q", inv.EventID)
	}
	if inv.Name != "Ada Lovelace" || inv.Phone != "+15550100" {
		t.Fatalf("name=%q phone=%q", inv.Name, inv.Phone)
	}
	if want := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC); !inv.StartTime.Equal(want) {
		t.Fatalf("start=%v, want %v", inv.StartTime, want)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name, body, param string
	}{
		{"unknown type", `{"event":"routing_form_submission.created","payload":{}}`, "event"},
		{"missing start", `{"event":"invitee.created","payload":{"name":"A","email":"a@x","scheduled_event":{"uri":"https://x/scheduled_events/e1","location":{"type":"outbound_call","location":"+1"}}}}`, "payload.scheduled_event.start_time"},
		{"no phone", `{"event":"invitee.created","payload":{"name":"A","email":"a@x","scheduled_event":{"uri":"https://x/scheduled_events/e1","start_time":"2026-03-02T15:00:00Z","location":{"type":"zoom","location":"https://zoom"}}}}`, "payload.scheduled_event.location"},
		{"no uri", `{"event":"invitee.canceled","payload":{"email":"a@x"}}`, "payload.scheduled_event.uri"},
		{"cancel without contact", `{"event":"invitee.canceled","payload":{"scheduled_event":{"uri":"https://x/scheduled_events/e1"}}}`, "payload.email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			var ce *core.Error
			if !errors.As(err, &ce) {
				t.Fatalf("err=%v, want *core.Error", err)
			}
			if ce.Type != core.ErrInvalidRequest || ce.Param != tt.param {
				t.Fatalf("type=%q param=%q, want %q %q", ce.Type, ce.Param, core.ErrInvalidRequest, tt.param)
			}
		})
	}

	if _, err := Parse([]byte("{")); err == nil {
		t.Fatalf("expected error for truncated body")
	}
}

func TestParse_CanceledUsesLegacyEventField(t *testing.T) {
	inv, err := Parse([]byte(`{"event":"invitee.canceled","payload":{"email":"a@x","event":"https://api.calendly.com/scheduled_events/e9/"}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if inv.EventID != "e9" {
		t.Fatalf("event id=%q, want e9", inv.EventID)
	}
	if !inv.StartTime.IsZero() {
		t.Fatalf("start=%v, want zero", inv.StartTime)
	}
}

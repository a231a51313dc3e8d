// Package calendar verifies and decodes Calendly-style invitee webhooks.
package calendar

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vango-go/vai-recruiter/pkg/core"
)

const SignatureHeader = "Calendly-Webhook-Signature"

// Tolerance bounds clock skew between the signer and us.
const Tolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing calendar webhook signature")
	ErrInvalidSignature = errors.New("invalid calendar webhook signature")
	ErrStaleTimestamp   = errors.New("stale calendar webhook timestamp")
)

// VerifySignature checks a "t=<unix>,v1=<hex hmac>" header, where the MAC is
// HMAC-SHA256 over "<t>.<body>".
func VerifySignature(signingKey, header string, body []byte, now time.Time) error {
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}

	var timestamp, signature string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			signature = v
		}
	}
	if timestamp == "" || signature == "" {
		return ErrMissingSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	signedAt := time.Unix(ts, 0)
	if now.Sub(signedAt) > Tolerance || signedAt.Sub(now) > Tolerance {
		return ErrStaleTimestamp
	}

	mac := hmac.New(sha256.New, []byte(signingKey))
	_, _ = mac.Write([]byte(timestamp + "." + string(body)))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns a header value VerifySignature accepts.
func Sign(signingKey string, body []byte, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(signingKey))
	_, _ = mac.Write([]byte(timestamp + "." + string(body)))
	return "t=" + timestamp + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

type EventType string

const (
	InviteeCreated  EventType = "invitee.created"
	InviteeCanceled EventType = "invitee.canceled"
)

// Invitee is a decoded booking notification.
type Invitee struct {
	Event     EventType
	EventID   string
	Name      string
	Email     string
	Phone     string
	StartTime time.Time
}

type webhook struct {
	Event   EventType `json:"event"`
	Payload struct {
		Name           string `json:"name"`
		Email          string `json:"email"`
		Event          string `json:"event"`
		ScheduledEvent struct {
			URI       string `json:"uri"`
			StartTime string `json:"start_time"`
			Location  struct {
				Type     string `json:"type"`
				Location string `json:"location"`
			} `json:"location"`
		} `json:"scheduled_event"`
	} `json:"payload"`
}

// Parse decodes body. Every failure is an invalid-request *core.Error.
func Parse(body []byte) (Invitee, error) {
	var wh webhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return Invitee{}, core.NewInvalidRequestError("invalid JSON body")
	}

	switch wh.Event {
	case InviteeCreated, InviteeCanceled:
	case "":
		return Invitee{}, core.NewInvalidRequestErrorWithParam("event is required", "event")
	default:
		return Invitee{}, core.NewInvalidRequestErrorWithParam("unhandled event type: "+string(wh.Event), "event")
	}

	p := wh.Payload
	inv := Invitee{
		Event: wh.Event,
		Name:  strings.TrimSpace(p.Name),
		Email: strings.TrimSpace(p.Email),
	}
	// Only calls we place carry a number.
	if p.ScheduledEvent.Location.Type == "outbound_call" {
		inv.Phone = strings.TrimSpace(p.ScheduledEvent.Location.Location)
	}

	uri := p.ScheduledEvent.URI
	if uri == "" {
		uri = p.Event
	}
	inv.EventID = EventID(uri)
	if inv.EventID == "" {
		return Invitee{}, core.NewInvalidRequestErrorWithParam("scheduled event uri is required", "payload.scheduled_event.uri")
	}

	if inv.Event == InviteeCanceled {
		if inv.Phone == "" && inv.Email == "" {
			return Invitee{}, core.NewInvalidRequestErrorWithParam("phone or email is required", "payload.email")
		}
		return inv, nil
	}

	for _, f := range []struct{ value, param string }{
		{inv.Name, "payload.name"},
		{inv.Email, "payload.email"},
		{inv.Phone, "payload.scheduled_event.location"},
		{p.ScheduledEvent.StartTime, "payload.scheduled_event.start_time"},
	} {
		if f.value == "" {
			return Invitee{}, core.NewInvalidRequestErrorWithParam(f.param+" is required", f.param)
		}
	}
	start, err := time.Parse(time.RFC3339Nano, p.ScheduledEvent.StartTime)
	if err != nil {
		return Invitee{}, core.NewInvalidRequestErrorWithParam("start_time must be RFC 3339", "payload.scheduled_event.start_time")
	}
	inv.StartTime = start.UTC()
	return inv, nil
}

// EventID is the last path segment of a scheduled-event URI.
func EventID(uri string) string {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return ""
	}
	path := strings.TrimRight(u.Path, "/")
	return path[strings.LastIndex(path, "/")+1:]
}

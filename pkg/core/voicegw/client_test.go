package voicegw

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vango-go/vai-recruiter/pkg/core"
)

func fastBackoff() retry.Backoff {
	return retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond))
}

func newTestClient(url string) *Client {
	return New(Config{
		APIKey:        "vapi-key",
		PhoneNumberID: "pn_1",
		AssistantID:   "asst_1",
		WebhookURL:    "https://recruiter.example.com/interview",
	}, WithBaseURL(url), WithBackoff(fastBackoff))
}

func TestStartCall(t *testing.T) {
	var got startCallRequest
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/call" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"call_123","status":"queued","monitor":{"controlUrl":"https://ctl.example.com/call_123/control"}}`)
	}))
	defer server.Close()

	call, err := newTestClient(server.URL).StartCall(t.Context(), "cand-1", "+15551234567", "Hello.. am I speaking with Ada")
	if err != nil {
		t.Fatalf("StartCall() error = %v", err)
	}
	if call.ID != "call_123" || call.ControlURL != "https://ctl.example.com/call_123/control" {
		t.Fatalf("call = %+v", call)
	}
	if call.CandidateID != "cand-1" {
		t.Fatalf("candidate id = %q, want cand-1", call.CandidateID)
	}
	if gotAuth != "Bearer vapi-key" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if got.PhoneNumberID != "pn_1" || got.AssistantID != "asst_1" || got.Customer.Number != "+15551234567" {
		t.Fatalf("request = %+v", got)
	}
	if got.AssistantOverrides.Model.Provider != "custom-llm" || got.AssistantOverrides.Model.URL != "https://recruiter.example.com/interview" {
		t.Fatalf("model override = %+v", got.AssistantOverrides.Model)
	}
	if got.AssistantOverrides.Metadata["candidate_id"] != "cand-1" {
		t.Fatalf("metadata = %+v", got.AssistantOverrides.Metadata)
	}
}

func TestStartCall_DoesNotRetryServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"message":"upstream"}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).StartCall(t.Context(), "cand-1", "+1555", "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrProvider {
		t.Fatalf("error = %v, want provider error", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestEndCall(t *testing.T) {
	var body map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/call_123/control" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient("http://unused.invalid")
	if err := c.EndCall(t.Context(), server.URL+"/call_123/control"); err != nil {
		t.Fatalf("EndCall() error = %v", err)
	}
	if body["type"] != "end-call" {
		t.Fatalf("body = %+v", body)
	}
}

func TestEndCall_AlreadyEnded(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"message":"Not Found"}`},
		{name: "bad request ended", status: http.StatusBadRequest, body: `{"message":["Call has already ended"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			err := newTestClient(server.URL).EndCall(t.Context(), server.URL+"/c/control")
			if !errors.Is(err, ErrCallEnded) {
				t.Fatalf("err = %v, want ErrCallEnded", err)
			}
		})
	}
}

func TestEndCall_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := newTestClient(server.URL).EndCall(t.Context(), server.URL+"/c/control"); err != nil {
		t.Fatalf("EndCall() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestGetCall_ReadsCandidateMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/call/call_9" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `{"id":"call_9","status":"in-progress","monitor":{"controlUrl":"https://ctl/9/control"},"assistantOverrides":{"metadata":{"candidate_id":"cand-9"}}}`)
	}))
	defer server.Close()

	call, err := newTestClient(server.URL).GetCall(t.Context(), "call_9")
	if err != nil {
		t.Fatalf("GetCall() error = %v", err)
	}
	if call.CandidateID != "cand-9" || call.ControlURL != "https://ctl/9/control" || call.Status != "in-progress" {
		t.Fatalf("call = %+v", call)
	}
}

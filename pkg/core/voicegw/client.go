// Package voicegw is a client for the VAPI voice gateway: it places
// outbound interview calls, ends them through the call's control URL and
// looks up call metadata.
package voicegw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vango-go/vai-recruiter/pkg/core"
)

const (
	// DefaultBaseURL is the default VAPI API endpoint.
	DefaultBaseURL = "https://api.vapi.ai"

	// CustomLLMModel is the model name the gateway reports back on turn
	// webhooks. The gateway does not interpret it.
	CustomLLMModel = "recruiter-agent"
)

// ErrCallEnded reports that the call was already over when asked to end it.
var ErrCallEnded = errors.New("voicegw: call already ended")

// Config identifies the gateway resources used for every call.
type Config struct {
	APIKey        string
	PhoneNumberID string
	AssistantID   string
	// WebhookURL is the custom-LLM endpoint the gateway posts turns to.
	WebhookURL string
}

// Call is the subset of gateway call state the orchestrator needs.
type Call struct {
	ID          string
	ControlURL  string
	CandidateID string
	Status      string
}

// Client talks to the gateway over HTTP.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	backoff    func() retry.Backoff
}

// New creates a gateway client.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultBackoff() retry.Backoff {
	b := retry.NewExponential(200 * time.Millisecond)
	b = retry.WithCappedDuration(2*time.Second, b)
	return retry.WithMaxRetries(3, b)
}

type startCallRequest struct {
	PhoneNumberID      string             `json:"phoneNumberId"`
	Customer           customer           `json:"customer"`
	AssistantID        string             `json:"assistantId"`
	AssistantOverrides assistantOverrides `json:"assistantOverrides"`
}

type customer struct {
	Number string `json:"number"`
}

type assistantOverrides struct {
	FirstMessage string            `json:"firstMessage"`
	Model        customModel       `json:"model"`
	Metadata     map[string]string `json:"metadata"`
}

type customModel struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	URL      string `json:"url"`
}

type callResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Monitor struct {
		ControlURL string `json:"controlUrl"`
	} `json:"monitor"`
	Metadata           map[string]any `json:"metadata"`
	AssistantOverrides struct {
		Metadata map[string]any `json:"metadata"`
	} `json:"assistantOverrides"`
}

func (r callResponse) call() Call {
	c := Call{ID: r.ID, ControlURL: r.Monitor.ControlURL, Status: r.Status}
	for _, md := range []map[string]any{r.AssistantOverrides.Metadata, r.Metadata} {
		if id, ok := md["candidate_id"]; ok && id != nil {
			c.CandidateID = fmt.Sprint(id)
			break
		}
	}
	return c
}

// StartCall places an outbound call and returns its id and control URL.
// Only throttled requests are retried; a failed create may already have
// dialed the candidate.
func (c *Client) StartCall(ctx context.Context, candidateID, phone, greeting string) (Call, error) {
	req := startCallRequest{
		PhoneNumberID: c.cfg.PhoneNumberID,
		Customer:      customer{Number: phone},
		AssistantID:   c.cfg.AssistantID,
		AssistantOverrides: assistantOverrides{
			FirstMessage: greeting,
			Model: customModel{
				Provider: "custom-llm",
				Model:    CustomLLMModel,
				URL:      c.cfg.WebhookURL,
			},
			Metadata: map[string]string{"candidate_id": candidateID},
		},
	}

	var resp callResponse
	err := c.do(ctx, http.MethodPost, c.url("/call"), req, &resp, func(status int) bool {
		return status == http.StatusTooManyRequests
	}, false)
	if err != nil {
		return Call{}, err
	}
	if resp.ID == "" || resp.Monitor.ControlURL == "" {
		return Call{}, core.NewProviderError("voicegw", fmt.Errorf("start call: response missing id or control url"))
	}
	call := resp.call()
	if call.CandidateID == "" {
		call.CandidateID = candidateID
	}
	return call, nil
}

// EndCall asks the gateway to hang up. It returns ErrCallEnded when the
// call is already over.
func (c *Client) EndCall(ctx context.Context, controlURL string) error {
	if controlURL == "" {
		return core.NewProviderError("voicegw", fmt.Errorf("end call: empty control url"))
	}
	err := c.do(ctx, http.MethodPost, controlURL, map[string]string{"type": "end-call"}, nil, retryable, true)
	var se *statusError
	if errors.As(err, &se) && se.callEnded() {
		return ErrCallEnded
	}
	return err
}

// GetCall looks a call up by id.
func (c *Client) GetCall(ctx context.Context, callID string) (Call, error) {
	var resp callResponse
	if err := c.do(ctx, http.MethodGet, c.url("/call/"+callID), nil, &resp, retryable, true); err != nil {
		return Call{}, err
	}
	return resp.call(), nil
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.baseURL, "/") + path
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// do sends one JSON request with retries. retryTransport controls whether
// network errors are retried in addition to statuses accepted by retryStatus.
func (c *Client) do(ctx context.Context, method, url string, in, out any, retryStatus func(int) bool, retryTransport bool) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		c.setHeaders(req, body != nil)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			err = fmt.Errorf("http request: %w", err)
			if retryTransport && ctx.Err() == nil {
				return retry.RetryableError(err)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			se := parseError(resp)
			if retryStatus(resp.StatusCode) {
				return retry.RetryableError(se)
			}
			return se
		}

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return err
	}
	return core.NewProviderError("voicegw", err)
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
}

package voicegw

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// statusError is a non-2xx gateway response.
type statusError struct {
	StatusCode int
	Message    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("voicegw: status %d: %s", e.StatusCode, e.Message)
}

// callEnded reports whether the gateway refused because the call is over.
func (e *statusError) callEnded() bool {
	switch e.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return true
	case http.StatusBadRequest, http.StatusConflict:
		msg := strings.ToLower(e.Message)
		return strings.Contains(msg, "ended") || strings.Contains(msg, "not active") || strings.Contains(msg, "no active")
	}
	return false
}

// parseError reads a gateway error body. VAPI reports either
// {"message": "..."} or {"message": ["...", "..."]}.
func parseError(resp *http.Response) *statusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil {
		var one string
		var many []string
		switch {
		case json.Unmarshal(payload.Message, &one) == nil && one != "":
			msg = one
		case json.Unmarshal(payload.Message, &many) == nil && len(many) > 0:
			msg = strings.Join(many, "; ")
		case payload.Error != "":
			msg = payload.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &statusError{StatusCode: resp.StatusCode, Message: msg}
}

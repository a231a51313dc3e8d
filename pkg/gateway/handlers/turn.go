package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vango-go/vai-recruiter/pkg/core"
	"github.com/vango-go/vai-recruiter/pkg/core/interview"
	"github.com/vango-go/vai-recruiter/pkg/core/voicegw"
	"github.com/vango-go/vai-recruiter/pkg/gateway/sse"
)

// TurnProcessor runs one interview turn.
type TurnProcessor interface {
	Process(ctx context.Context, in interview.TurnInput) (interview.TurnResult, error)
}

// TurnHandler serves the voice gateway's custom-LLM webhook: an OpenAI
// chat-completions request in, one streamed completion chunk out.
type TurnHandler struct {
	Processor TurnProcessor
	Logger    *slog.Logger
	Now       func() time.Time
}

type turnRequest struct {
	Model string `json:"model"`
	Call  struct {
		ID string `json:"id"`
	} `json:"call"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	// Timestamp is milliseconds since the epoch.
	Timestamp int64 `json:"timestamp"`
}

type completionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason string     `json:"finish_reason"`
}

type chunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
}

func (h TurnHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	var req turnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	callID := strings.TrimSpace(req.Call.ID)
	if callID == "" {
		writeError(w, r, core.NewInvalidRequestErrorWithParam("call.id is required", "call.id"))
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, r, core.NewInvalidRequestErrorWithParam("messages must not be empty", "messages"))
		return
	}

	at := now()
	if req.Timestamp > 0 {
		at = time.UnixMilli(req.Timestamp)
	}

	res, err := h.Processor.Process(r.Context(), interview.TurnInput{
		SessionID: callID,
		Utterance: req.Messages[len(req.Messages)-1].Content,
		At:        at,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	sw, err := sse.New(w)
	if err != nil {
		writeError(w, r, err)
		return
	}
	model := req.Model
	if model == "" {
		model = voicegw.CustomLLMModel
	}
	sw.SetHeaders()
	w.WriteHeader(http.StatusOK)

	chunk := completionChunk{
		ID:      "chatcmpl-" + callID,
		Object:  "chat.completion.chunk",
		Created: at.Unix(),
		Model:   model,
		Choices: []chunkChoice{{
			Delta:        chunkDelta{Role: "assistant", Content: res.Text},
			FinishReason: "stop",
		}},
	}
	if err := sw.Data(chunk); err != nil {
		h.logger().Warn("turn reply write failed", "session_id", callID, "error", err)
		return
	}
	_ = sw.Done()
}

func (h TurnHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

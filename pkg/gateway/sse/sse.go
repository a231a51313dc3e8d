package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Writer emits OpenAI-style server-sent events: data-only frames and a
// closing [DONE] frame.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

func New(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &Writer{w: w, flusher: f}, nil
}

// SetHeaders marks the response as an event stream. Call before the first
// frame.
func (sw *Writer) SetHeaders() {
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
}

func (sw *Writer) Data(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return sw.frame(b)
}

func (sw *Writer) Done() error {
	return sw.frame([]byte("[DONE]"))
}

func (sw *Writer) frame(b []byte) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", b); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

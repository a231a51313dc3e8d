package mw

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vango-go/vai-recruiter/pkg/gateway/sse"
)

// recordingWriter is a bare ResponseWriter; the flusher and hijacker variants
// below add one optional interface each.
type recordingWriter struct {
	header   http.Header
	status   int
	body     bytes.Buffer
	flushed  bool
	hijacked bool
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{header: make(http.Header)}
}

func (w *recordingWriter) Header() http.Header { return w.header }

func (w *recordingWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.WriteHeader(http.StatusOK)
	return w.body.Write(p)
}

type flushingWriter struct{ *recordingWriter }

func (w flushingWriter) Flush() { w.flushed = true }

type hijackingWriter struct{ *recordingWriter }

func (w hijackingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.hijacked = true
	return nil, nil, nil
}

type flushHijackingWriter struct{ *recordingWriter }

func (w flushHijackingWriter) Flush() { w.flushed = true }

func (w flushHijackingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.hijacked = true
	return nil, nil, nil
}

func serveLogged(t *testing.T, w http.ResponseWriter, target string, h http.HandlerFunc) map[string]any {
	t.Helper()
	var out bytes.Buffer
	req := httptest.NewRequest(http.MethodPost, target, nil).WithContext(WithRequestID(context.Background(), "req_test"))
	AccessLog(slog.New(slog.NewJSONHandler(&out, nil)), h).ServeHTTP(w, req)

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &rec); err != nil {
		t.Fatalf("log=%q err=%v", out.String(), err)
	}
	return rec
}

func TestAccessLog_OptionalInterfaces(t *testing.T) {
	tests := []struct {
		name          string
		writer        func(*recordingWriter) http.ResponseWriter
		flush, hijack bool
	}{
		{"plain", func(r *recordingWriter) http.ResponseWriter { return r }, false, false},
		{"flusher", func(r *recordingWriter) http.ResponseWriter { return flushingWriter{r} }, true, false},
		{"hijacker", func(r *recordingWriter) http.ResponseWriter { return hijackingWriter{r} }, false, true},
		{"both", func(r *recordingWriter) http.ResponseWriter { return flushHijackingWriter{r} }, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := newRecordingWriter()
			serveLogged(t, tt.writer(base), "/interview/monitor", func(w http.ResponseWriter, r *http.Request) {
				f, isFlusher := w.(http.Flusher)
				hj, isHijacker := w.(http.Hijacker)
				if isFlusher != tt.flush || isHijacker != tt.hijack {
					t.Fatalf("flusher=%v hijacker=%v, want %v %v", isFlusher, isHijacker, tt.flush, tt.hijack)
				}
				if isFlusher {
					f.Flush()
				}
				if isHijacker {
					if _, _, err := hj.Hijack(); err != nil {
						t.Fatalf("hijack: %v", err)
					}
				}
			})
			if base.flushed != tt.flush || base.hijacked != tt.hijack {
				t.Fatalf("delegated flush=%v hijack=%v", base.flushed, base.hijacked)
			}
		})
	}
}

func TestAccessLog_RecordsStatus(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    int
	}{
		{"explicit", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) }, http.StatusAccepted},
		{"implicit", func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "ok") }, http.StatusOK},
		{"first wins", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			w.WriteHeader(http.StatusOK)
		}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveLogged(t, newRecordingWriter(), "/interview/sessions/call-1/finalization/retry", tt.handler)
			if got, ok := rec["status"].(float64); !ok || int(got) != tt.want {
				t.Fatalf("status=%v, want %d", rec["status"], tt.want)
			}
			if rec["request_id"] != "req_test" || rec["path"] != "/interview/sessions/call-1/finalization/retry" {
				t.Fatalf("record=%v", rec)
			}
		})
	}
}

func TestAccessLog_TurnReplyStreamsThrough(t *testing.T) {
	base := newRecordingWriter()
	serveLogged(t, flushingWriter{base}, "/interview/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		sw, err := sse.New(w)
		if err != nil {
			t.Fatalf("sse.New behind AccessLog: %v", err)
		}
		if err := sw.Data(map[string]string{"object": "chat.completion.chunk"}); err != nil {
			t.Fatalf("Data: %v", err)
		}
		if err := sw.Done(); err != nil {
			t.Fatalf("Done: %v", err)
		}
	})

	want := `data: {"object":"chat.completion.chunk"}` + "\n\n" + "data: [DONE]\n\n"
	if got := base.body.String(); !strings.HasSuffix(got, want) {
		t.Fatalf("body=%q", got)
	}
	if !base.flushed {
		t.Fatalf("expected flush to reach the underlying writer")
	}
}

package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/vango-go/vai-recruiter/pkg/gateway/config"
	"github.com/vango-go/vai-recruiter/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ReadyHandler fails while starting up, while draining, or when a
// dependency check fails. Configuration gaps are reported as warnings.
type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
	// Checks are run with a short timeout on every readiness request, e.g. a database
	// ping.
	Checks map[string]func(context.Context) error
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK       bool     `json:"ok"`
		Draining bool     `json:"draining,omitempty"`
		Issues   []string `json:"issues,omitempty"`
		Warnings []string `json:"warnings,omitempty"`
	}

	var issues []string
	if !h.Lifecycle.Ready() {
		issues = append(issues, "not accepting traffic")
	}

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, name := range names {
		if err := h.Checks[name](ctx); err != nil {
			issues = append(issues, name+": "+err.Error())
		}
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, readyResp{
		OK:       ok,
		Draining: h.Lifecycle.IsDraining(),
		Issues:   issues,
		Warnings: h.Config.Issues(),
	})
}

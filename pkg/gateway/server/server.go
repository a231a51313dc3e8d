package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/vango-go/vai-recruiter/pkg/core/session"
	"github.com/vango-go/vai-recruiter/pkg/gateway/config"
	"github.com/vango-go/vai-recruiter/pkg/gateway/handlers"
	"github.com/vango-go/vai-recruiter/pkg/gateway/lifecycle"
	"github.com/vango-go/vai-recruiter/pkg/gateway/mw"
	"github.com/vango-go/vai-recruiter/pkg/gateway/ratelimit"
)

// Finalizer is the part of the finalization workflow the HTTP surface uses.
type Finalizer interface {
	handlers.FinalizationTrigger
	handlers.FinalizationTasks
}

// Scheduler is the part of the deferred job scheduler the HTTP surface uses.
type Scheduler interface {
	handlers.JobScheduler
	handlers.PendingJobs
}

// Deps are the collaborators behind the routes. Monitor and Checks are
// optional.
type Deps struct {
	Sessions  *session.Registry
	Processor handlers.TurnProcessor
	Finalizer Finalizer
	Starter   handlers.InterviewStarter
	Bookings  handlers.BookingStore
	Scheduler Scheduler
	Monitor   http.Handler
	Lifecycle *lifecycle.Lifecycle
	Checks    map[string]func(context.Context) error
}

type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	mux     *http.ServeMux
	deps    Deps
	limiter *ratelimit.Limiter
}

func New(cfg config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Lifecycle == nil {
		deps.Lifecycle = &lifecycle.Lifecycle{}
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		deps:   deps,
		limiter: ratelimit.New(ratelimit.Config{
			RPS:                   cfg.LimitRPS,
			Burst:                 cfg.LimitBurst,
			MaxConcurrentRequests: cfg.LimitMaxConcurrentRequests,
		}),
	}

	s.routes()
	return s
}

// NewHTTPClient is the outbound client shared by the voice gateway and model
// providers.
func NewHTTPClient(cfg config.Config) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: cfg.UpstreamConnectTimeout,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: cfg.UpstreamResponseHeaderTimeout,
		},
	}
}

func (s *Server) routes() {
	secret := s.cfg.WebhookSecret
	guard := func(h http.Handler) http.Handler { return mw.RequireSecret(secret, false, h) }
	limit := func(h http.Handler) http.Handler { return mw.RateLimit(s.limiter, s.cfg.TrustProxyHeaders, h) }

	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Config:    s.cfg,
		Lifecycle: s.deps.Lifecycle,
		Checks:    s.deps.Checks,
	})

	s.mux.Handle("POST /interview/chat/completions", guard(handlers.TurnHandler{
		Processor: s.deps.Processor,
		Logger:    s.logger,
	}))
	s.mux.Handle("POST /interview/events", guard(handlers.CallEventsHandler{
		Sessions:  s.deps.Sessions,
		Finalizer: s.deps.Finalizer,
		Logger:    s.logger,
	}))
	s.mux.Handle("POST /webhooks/calendar", limit(handlers.CalendarHandler{
		SigningKey: s.cfg.CalendlySigningKey,
		Bookings:   s.deps.Bookings,
		Scheduler:  s.deps.Scheduler,
		Logger:     s.logger,
	}))
	s.mux.Handle("POST /interview/start/{candidateID}", guard(limit(handlers.StartHandler{
		Starter: s.deps.Starter,
	})))

	fin := handlers.FinalizationHandler{Tasks: s.deps.Finalizer}
	s.mux.Handle("GET /interview/sessions/{id}/finalization", guard(http.HandlerFunc(fin.Status)))
	s.mux.Handle("POST /interview/sessions/{id}/finalization/retry", guard(http.HandlerFunc(fin.Retry)))
	s.mux.Handle("GET /interview/jobs", guard(handlers.JobsHandler{Jobs: s.deps.Scheduler}))

	if s.deps.Monitor != nil {
		s.mux.Handle("GET /interview/monitor", mw.RequireSecret(secret, true, s.deps.Monitor))
	}

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.MaxBody(s.cfg.MaxBodyBytes, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vango-go/vai-recruiter/pkg/core/interview"
	"github.com/vango-go/vai-recruiter/pkg/core/policy"
	"github.com/vango-go/vai-recruiter/pkg/core/pricing"
	"github.com/vango-go/vai-recruiter/pkg/core/session"
	"github.com/vango-go/vai-recruiter/pkg/core/types"
	"github.com/vango-go/vai-recruiter/pkg/core/voicegw"
	"github.com/vango-go/vai-recruiter/pkg/events"
	"github.com/vango-go/vai-recruiter/pkg/gateway/config"
	"github.com/vango-go/vai-recruiter/pkg/gateway/lifecycle"
	"github.com/vango-go/vai-recruiter/pkg/gateway/monitor"
	gatewayserver "github.com/vango-go/vai-recruiter/pkg/gateway/server"
	"github.com/vango-go/vai-recruiter/pkg/gateway/upstream"
	"github.com/vango-go/vai-recruiter/pkg/scheduler"
	"github.com/vango-go/vai-recruiter/pkg/store/memory"
	"github.com/vango-go/vai-recruiter/pkg/store/postgres"
)

// app is the wired process: everything runRecruiter starts and stops.
type app struct {
	handler   http.Handler
	lifecycle *lifecycle.Lifecycle
	scheduler *scheduler.Scheduler
	finalizer *interview.Finalizer
	hub       *monitor.Hub
	closers   []func()
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{lifecycle: &lifecycle.Lifecycle{}}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	var (
		repo   interview.Repository
		store  scheduler.Store
		checks = map[string]func(context.Context) error{}
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgres.Migrate(ctx, pool, logger); err != nil {
			return nil, err
		}
		repo = postgres.NewRepository(pool)
		store = postgres.NewJobStore(pool)
		checks["database"] = pingCheck(pool)
	} else {
		logger.Warn("no database configured; candidates and jobs are kept in memory")
		repo = memory.NewRepository()
		store = scheduler.NewMemoryStore()
	}

	var publisher interview.Publisher = events.LogPublisher{Logger: logger}
	if cfg.AMQPURL != "" {
		p, err := events.DialAMQP(ctx, events.AMQPConfig{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := p.Close(); err != nil {
				logger.Warn("close amqp connection", "error", err)
			}
		})
		publisher = p
	}

	prices, err := pricing.Load(cfg.PricingFile)
	if err != nil {
		return nil, err
	}

	httpClient := gatewayserver.NewHTTPClient(cfg)
	factory := upstream.Factory{
		HTTPClient: httpClient,
		APIKeys:    cfg.ProviderKeys(),
		BaseURLs:   map[string]string{"openai": cfg.OpenAIBaseURL},
	}
	dialogue := resolveModel(ctx, factory, cfg.InterviewModel, logger)
	evaluator := resolveModel(ctx, factory, cfg.EvaluationModel, logger)

	gateway := voicegw.New(voicegw.Config{
		APIKey:        cfg.VapiAPIKey,
		PhoneNumberID: cfg.VapiPhoneNumberID,
		AssistantID:   cfg.VapiAssistantID,
		WebhookURL:    cfg.VapiWebhookURL,
	}, voicegw.WithBaseURL(cfg.VapiBaseURL), voicegw.WithHTTPClient(httpClient))

	a.hub = monitor.NewHub(monitor.Config{}, logger)
	a.closers = append(a.closers, a.hub.Close)

	sessions := session.NewRegistry()
	a.finalizer = interview.NewFinalizer(interview.FinalizerConfig{
		Sessions:    sessions,
		Gateway:     gateway,
		Repo:        repo,
		Evaluator:   evaluator,
		Pricer:      prices,
		Publisher:   publisher,
		Broadcaster: a.hub,
		Logger:      logger,
		Grace:       cfg.FinalizeGrace,
		Timeout:     cfg.FinalizeTimeout,
	})
	hydrator := &interview.Hydrator{Repo: repo, Gateway: gateway, Logger: logger}
	processor := interview.NewProcessor(interview.ProcessorConfig{
		Sessions:    sessions,
		Dialogue:    dialogue,
		Hydrate:     hydrator.Hydrate,
		Finalizer:   a.finalizer,
		Broadcaster: a.hub,
		Logger:      logger,
		Timeout:     cfg.TurnTimeout,
	})
	starter := &interview.Starter{
		Repo:        repo,
		Gateway:     gateway,
		Sessions:    sessions,
		Broadcaster: a.hub,
		Logger:      logger,
	}
	a.scheduler, err = scheduler.New(scheduler.Config{
		Store:        store,
		Trigger:      starter.Fire,
		Logger:       logger,
		PollInterval: cfg.SchedulerPollInterval,
		MisfireGrace: cfg.SchedulerMisfireGrace,
		FireTimeout:  cfg.SchedulerFireTimeout,
	})
	if err != nil {
		return nil, err
	}

	a.handler = gatewayserver.New(cfg, gatewayserver.Deps{
		Sessions:  sessions,
		Processor: processor,
		Finalizer: a.finalizer,
		Starter:   starter,
		Bookings:  repo,
		Scheduler: a.scheduler,
		Monitor:   a.hub,
		Lifecycle: a.lifecycle,
		Checks:    checks,
	}, logger).Handler()
	return a, nil
}

func pingCheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}

// resolveModel never fails startup: a model that cannot be built reports
// its error on every call, and readiness lists the missing key.
func resolveModel(ctx context.Context, f upstream.Factory, model string, logger *slog.Logger) upstream.Model {
	m, err := f.New(ctx, model)
	if err != nil {
		logger.Warn("model unavailable", "model", model, "error", err)
		return unavailableModel{model: model, err: err}
	}
	return m
}

type unavailableModel struct {
	model string
	err   error
}

func (m unavailableModel) Model() string { return m.model }

func (m unavailableModel) Generate(context.Context, string, []types.Message) (policy.Generation, error) {
	return policy.Generation{}, fmt.Errorf("%s: %w", m.model, m.err)
}

func (m unavailableModel) Evaluate(context.Context, string) (policy.Assessment, error) {
	return policy.Assessment{}, fmt.Errorf("%s: %w", m.model, m.err)
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vango-go/vai-recruiter/pkg/core"
)

const envPrefix = "RECRUITER_"

type Config struct {
	Addr string

	// WebhookSecret guards the voice-gateway and operator routes. Empty
	// disables the check.
	WebhookSecret string
	// CalendlySigningKey enables calendar webhook signature verification.
	CalendlySigningKey string

	// If true, client identity may be derived from proxy headers like X-Forwarded-For.
	// This should only be enabled when the service is deployed behind a trusted proxy/LB.
	TrustProxyHeaders bool

	MaxBodyBytes int64

	DatabaseURL  string
	AMQPURL      string
	AMQPExchange string
	PricingFile  string

	// Model providers.
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	GeminiAPIKey     string
	GroqAPIKey       string
	CerebrasAPIKey   string
	OpenRouterAPIKey string

	// provider/model strings.
	InterviewModel  string
	EvaluationModel string

	// Voice gateway.
	VapiAPIKey        string
	VapiBaseURL       string
	VapiPhoneNumberID string
	VapiAssistantID   string
	VapiWebhookURL    string

	FinalizeGrace   time.Duration
	FinalizeTimeout time.Duration
	TurnTimeout     time.Duration

	SchedulerPollInterval time.Duration
	SchedulerMisfireGrace time.Duration
	SchedulerFireTimeout  time.Duration

	// In-memory limits per client IP on the calendar and start routes.
	LimitRPS                   float64
	LimitBurst                 int
	LimitMaxConcurrentRequests int

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration

	// Upstream HTTP client defaults
	UpstreamConnectTimeout        time.Duration
	UpstreamResponseHeaderTimeout time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                          envOr("ADDR", ":8080"),
		WebhookSecret:                 envOr("WEBHOOK_SECRET", ""),
		CalendlySigningKey:            envOr("CALENDLY_SIGNING_KEY", ""),
		TrustProxyHeaders:             envBoolOr("TRUST_PROXY_HEADERS", false),
		MaxBodyBytes:                  envInt64Or("MAX_BODY_BYTES", 1<<20), // 1 MiB
		DatabaseURL:                   envOr("DATABASE_URL", ""),
		AMQPURL:                       envOr("AMQP_URL", ""),
		AMQPExchange:                  envOr("AMQP_EXCHANGE", "recruiter.events"),
		PricingFile:                   envOr("PRICING_FILE", ""),
		OpenAIAPIKey:                  envOr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:                 envOr("OPENAI_BASE_URL", ""),
		GeminiAPIKey:                  envOr("GEMINI_API_KEY", ""),
		GroqAPIKey:                    envOr("GROQ_API_KEY", ""),
		CerebrasAPIKey:                envOr("CEREBRAS_API_KEY", ""),
		OpenRouterAPIKey:              envOr("OPENROUTER_API_KEY", ""),
		InterviewModel:                envOr("INTERVIEW_MODEL", "openai/gpt-4.1-mini"),
		EvaluationModel:               envOr("EVALUATION_MODEL", "openai/gpt-4.1"),
		VapiAPIKey:                    envOr("VAPI_API_KEY", ""),
		VapiBaseURL:                   envOr("VAPI_BASE_URL", "https://api.vapi.ai"),
		VapiPhoneNumberID:             envOr("VAPI_PHONE_NUMBER_ID", ""),
		VapiAssistantID:               envOr("VAPI_ASSISTANT_ID", ""),
		VapiWebhookURL:                envOr("VAPI_WEBHOOK_URL", ""),
		FinalizeGrace:                 envDurationOr("FINALIZE_GRACE", 5*time.Second),
		FinalizeTimeout:               envDurationOr("FINALIZE_TIMEOUT", 3*time.Minute),
		TurnTimeout:                   envDurationOr("TURN_TIMEOUT", 20*time.Second),
		SchedulerPollInterval:         envDurationOr("SCHEDULER_POLL_INTERVAL", 5*time.Second),
		SchedulerMisfireGrace:         envDurationOr("SCHEDULER_MISFIRE_GRACE", 10*time.Minute),
		SchedulerFireTimeout:          envDurationOr("SCHEDULER_FIRE_TIMEOUT", 2*time.Minute),
		LimitRPS:                      envFloat64Or("RATE_LIMIT_RPS", 5.0),
		LimitBurst:                    envIntOr("RATE_LIMIT_BURST", 10),
		LimitMaxConcurrentRequests:    envIntOr("MAX_CONCURRENT_REQUESTS", 20),
		ReadHeaderTimeout:             envDurationOr("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:                   envDurationOr("READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:           envDurationOr("SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		UpstreamConnectTimeout:        envDurationOr("CONNECT_TIMEOUT", 5*time.Second),
		UpstreamResponseHeaderTimeout: envDurationOr("RESPONSE_HEADER_TIMEOUT", 60*time.Second),
	}

	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("RECRUITER_MAX_BODY_BYTES must be > 0")
	}
	if _, _, err := core.ParseModelString(cfg.InterviewModel); err != nil {
		return Config{}, fmt.Errorf("RECRUITER_INTERVIEW_MODEL: %w", err)
	}
	if _, _, err := core.ParseModelString(cfg.EvaluationModel); err != nil {
		return Config{}, fmt.Errorf("RECRUITER_EVALUATION_MODEL: %w", err)
	}
	if cfg.FinalizeGrace < 0 {
		return Config{}, fmt.Errorf("RECRUITER_FINALIZE_GRACE must be >= 0")
	}
	if cfg.FinalizeTimeout <= 0 {
		return Config{}, fmt.Errorf("RECRUITER_FINALIZE_TIMEOUT must be > 0")
	}
	if cfg.TurnTimeout < 0 {
		return Config{}, fmt.Errorf("RECRUITER_TURN_TIMEOUT must be >= 0")
	}
	if cfg.SchedulerPollInterval <= 0 {
		return Config{}, fmt.Errorf("RECRUITER_SCHEDULER_POLL_INTERVAL must be > 0")
	}
	if cfg.SchedulerMisfireGrace <= 0 {
		return Config{}, fmt.Errorf("RECRUITER_SCHEDULER_MISFIRE_GRACE must be > 0")
	}
	if cfg.SchedulerFireTimeout <= 0 {
		return Config{}, fmt.Errorf("RECRUITER_SCHEDULER_FIRE_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("RECRUITER_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("RECRUITER_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("RECRUITER_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.UpstreamConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("RECRUITER_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.UpstreamResponseHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("RECRUITER_RESPONSE_HEADER_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(cfg.VapiBaseURL) == "" {
		return Config{}, fmt.Errorf("RECRUITER_VAPI_BASE_URL must not be empty")
	}

	if cfg.LimitRPS < 0 {
		return Config{}, fmt.Errorf("RECRUITER_RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.LimitBurst < 0 {
		return Config{}, fmt.Errorf("RECRUITER_RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.LimitMaxConcurrentRequests < 0 {
		return Config{}, fmt.Errorf("RECRUITER_MAX_CONCURRENT_REQUESTS must be >= 0")
	}

	return cfg, nil
}

// ProviderKeys maps provider prefixes to their API keys.
func (c Config) ProviderKeys() map[string]string {
	keys := map[string]string{
		"openai":     c.OpenAIAPIKey,
		"gemini":     c.GeminiAPIKey,
		"groq":       c.GroqAPIKey,
		"cerebras":   c.CerebrasAPIKey,
		"openrouter": c.OpenRouterAPIKey,
	}
	for k, v := range keys {
		if v == "" {
			delete(keys, k)
		}
	}
	return keys
}

// Issues lists settings that leave the service unable to run interviews.
// They do not stop the process, but readiness reports them.
func (c Config) Issues() []string {
	var issues []string
	if c.VapiAPIKey == "" {
		issues = append(issues, "voice gateway api key not configured")
	}
	if c.VapiPhoneNumberID == "" {
		issues = append(issues, "voice gateway phone number not configured")
	}
	keys := c.ProviderKeys()
	for _, model := range []string{c.InterviewModel, c.EvaluationModel} {
		provider, _, err := core.ParseModelString(model)
		if err != nil {
			issues = append(issues, err.Error())
			continue
		}
		if _, ok := keys[provider]; !ok {
			issues = append(issues, fmt.Sprintf("no api key for provider %q (model %s)", provider, model))
		}
	}
	if c.DatabaseURL == "" {
		issues = append(issues, "no database configured; state is in memory")
	}
	return issues
}

func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func envOr(key, def string) string {
	v := lookup(key)
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := lookup(key)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := lookup(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := lookup(key)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := lookup(key)
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := lookup(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

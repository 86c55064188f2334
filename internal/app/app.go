package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/generation"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/llm"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/llm/adapters"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/logger"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/ratelimit"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/storage"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/token"
	goredis "github.com/redis/go-redis/v9"
)

// App represents the main application instance. Backends and the store are
// opened on first use, so commands that need neither never touch them.
type App struct {
	Config *ConfigManager
	Log    *logger.Logger

	settings     *Config
	providerName string

	orchestrator *generation.Orchestrator
	provider     llm.Provider
	limiter      ratelimit.Limiter
	redis        *goredis.Client
	store        *storage.Store
}

// Option configures an App.
type Option func(*App)

// WithConfigPath reads the configuration from path instead of the default
// location.
func WithConfigPath(path string) Option {
	return func(a *App) {
		if path != "" {
			a.Config = NewConfigManagerAt(path)
		}
	}
}

// WithProvider overrides defaults.provider.
func WithProvider(name string) Option {
	return func(a *App) {
		a.providerName = name
	}
}

// WithLogger replaces the configured logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}

// New creates a new application instance.
func New(opts ...Option) (*App, error) {
	a := &App{}
	for _, opt := range opts {
		opt(a)
	}

	if a.Config == nil {
		cm, err := NewConfigManager()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize config manager: %w", err)
		}
		a.Config = cm
	}

	settings, err := a.Config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	a.settings = settings

	if a.providerName == "" {
		a.providerName = settings.Defaults.Provider
	}

	if a.Log == nil {
		log, err := logger.New(settings.Logging.Mode, settings.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.Log = log
	}

	return a, nil
}

// Settings returns the loaded configuration.
func (a *App) Settings() *Config {
	return a.settings
}

// ProviderName returns the backend the orchestrator will use.
func (a *App) ProviderName() string {
	return a.providerName
}

// Limiter returns the configured rate limiter, connecting to Redis when
// that backend is selected.
func (a *App) Limiter(ctx context.Context) (ratelimit.Limiter, error) {
	if a.limiter != nil {
		return a.limiter, nil
	}

	rl := a.settings.RateLimit
	switch rl.Backend {
	case BackendRedis:
		rdb, err := ratelimit.DialRedis(ctx, rl.RedisAddr)
		if err != nil {
			return nil, err
		}
		limiter, err := ratelimit.NewRedisLimiter(rdb, rl.Config, ratelimit.WithRedisKey(rl.RedisKey))
		if err != nil {
			rdb.Close()
			return nil, err
		}
		a.redis = rdb
		a.limiter = limiter
	default:
		a.limiter = ratelimit.NewMemoryLimiter(rl.Config)
	}

	a.Log.Debug("rate limiter ready", "backend", rl.Backend,
		"max_requests", rl.MaxRequests, "max_tokens", rl.MaxTokens, "window", rl.Window)
	return a.limiter, nil
}

// Orchestrator builds the generation orchestrator on first use.
func (a *App) Orchestrator(ctx context.Context) (*generation.Orchestrator, error) {
	if a.orchestrator != nil {
		return a.orchestrator, nil
	}

	providerConfig, err := a.Config.ProviderConfig(a.providerName)
	if err != nil {
		return nil, err
	}
	provider, err := NewProvider(ctx, a.providerName, providerConfig)
	if err != nil {
		return nil, err
	}

	limiter, err := a.Limiter(ctx)
	if err != nil {
		provider.Close()
		return nil, err
	}

	orch, err := generation.New(provider, limiter,
		generation.WithConfig(a.settings.Generation),
		generation.WithLogger(a.Log),
	)
	if err != nil {
		provider.Close()
		return nil, err
	}

	a.provider = provider
	a.orchestrator = orch
	return orch, nil
}

// Store opens the post and template database on first use.
func (a *App) Store() (*storage.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := storage.Open(a.settings.DatabasePath)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

// NewProvider creates the named LLM backend.
func NewProvider(ctx context.Context, name string, cfg *ProviderConfig) (llm.Provider, error) {
	if cfg == nil {
		cfg = &ProviderConfig{}
	}

	switch name {
	case ProviderOpenAI:
		var opts []adapters.OpenAIOption
		if cfg.BaseURL != "" {
			opts = append(opts, adapters.WithOpenAIBaseURL(cfg.BaseURL))
		}
		if cfg.Organization != "" {
			opts = append(opts, adapters.WithOpenAIOrganization(cfg.Organization))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, adapters.WithOpenAITimeout(cfg.Timeout))
		}
		return adapters.NewOpenAIAdapter(cfg.APIKey, cfg.DefaultModel, opts...)

	case ProviderGemini:
		return adapters.NewGeminiAdapter(ctx, cfg.APIKey, cfg.DefaultModel)

	case ProviderLocal:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		var opts []adapters.LocalAdapterOption
		if cfg.APIKey != "" {
			opts = append(opts, adapters.WithAPIKey(cfg.APIKey))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, adapters.WithTimeout(cfg.Timeout))
		}
		opts = append(opts, adapters.WithTokenCounter(token.NewLazyCounter("")))
		return adapters.NewLocalAdapter(baseURL, cfg.DefaultModel, opts...), nil
	}

	return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, name)
}

// Close releases every opened backend.
func (a *App) Close() error {
	var errs []error
	if a.provider != nil {
		errs = append(errs, a.provider.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return errors.Join(errs...)
}

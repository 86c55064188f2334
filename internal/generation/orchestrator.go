// Package generation runs the generation path: compose a prompt, reserve
// rate-limit headroom, call the backend and hand the result back.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/analysis"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/llm"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/logger"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/prompt"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/ratelimit"
	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// MaxVariants bounds GenerateVariants.
const MaxVariants = 5

// Config holds the sampling parameters of each call kind.
type Config struct {
	MaxTokens           int     `yaml:"max_tokens"`
	Temperature         float64 `yaml:"temperature"`
	AnalysisMaxTokens   int     `yaml:"analysis_max_tokens"`
	AnalysisTemperature float64 `yaml:"analysis_temperature"`
	HooksTemperature    float64 `yaml:"hooks_temperature"`
}

// DefaultConfig returns the default sampling parameters.
func DefaultConfig() Config {
	return Config{
		MaxTokens:           1000,
		Temperature:         0.7,
		AnalysisMaxTokens:   1500,
		AnalysisTemperature: 0.3,
		HooksTemperature:    0.8,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = d.Temperature
	}
	if c.AnalysisMaxTokens <= 0 {
		c.AnalysisMaxTokens = d.AnalysisMaxTokens
	}
	if c.AnalysisTemperature <= 0 {
		c.AnalysisTemperature = d.AnalysisTemperature
	}
	if c.HooksTemperature <= 0 {
		c.HooksTemperature = d.HooksTemperature
	}
	return c
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig sets the sampling parameters. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		o.cfg = cfg.withDefaults()
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRequestIDs replaces the request ID generator, for tests.
func WithRequestIDs(next func() string) Option {
	return func(o *Orchestrator) {
		o.newID = next
	}
}

// Orchestrator is safe for concurrent use. The limiter is its only shared
// mutable state.
type Orchestrator struct {
	provider llm.Provider
	limiter  ratelimit.Limiter
	cfg      Config
	log      *logger.Logger
	newID    func() string
}

// New creates an orchestrator. A nil limiter gets an in-memory limiter with
// default ceilings.
func New(provider llm.Provider, limiter ratelimit.Limiter, opts ...Option) (*Orchestrator, error) {
	if provider == nil {
		return nil, errors.New("generation: provider is required")
	}
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter(ratelimit.DefaultConfig())
	}

	o := &Orchestrator{
		provider: provider,
		limiter:  limiter,
		cfg:      DefaultConfig(),
		log:      logger.NewNop(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Config returns the effective sampling parameters.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Status reports the limiter headroom.
func (o *Orchestrator) Status(ctx context.Context) (ratelimit.Status, error) {
	return o.limiter.Status(ctx)
}

// Generate turns req into one post. It fails fast with
// ratelimit.ErrRateLimitExceeded when the window has no headroom; backend
// errors are returned unchanged.
func (o *Orchestrator) Generate(ctx context.Context, req types.GenerationRequest) (*types.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := o.call(ctx, "generate", prompt.Compose(req), o.cfg.MaxTokens, o.cfg.Temperature)
	if err != nil {
		return nil, err
	}
	return toResult(resp), nil
}

// Iterate revises a previous post according to req.Intent.
func (o *Orchestrator) Iterate(ctx context.Context, req types.IterationRequest) (*types.GenerationResult, error) {
	text, err := prompt.ComposeIteration(req)
	if err != nil {
		return nil, err
	}

	resp, err := o.call(ctx, "iterate", text, o.cfg.MaxTokens, o.cfg.Temperature)
	if err != nil {
		return nil, err
	}
	return toResult(resp), nil
}

// GenerateHooks asks for opening lines and parses them. A malformed reply
// fails with analysis.ErrParse and is not retried.
func (o *Orchestrator) GenerateHooks(ctx context.Context, req types.HookRequest) ([]types.HookSuggestion, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := o.call(ctx, "hooks", prompt.ComposeHooks(req), o.cfg.MaxTokens, o.cfg.HooksTemperature)
	if err != nil {
		return nil, err
	}
	return analysis.ParseHookResponse(resp.Text)
}

// GenerateVariants runs n independent generations concurrently. Each one
// reserves its own rate-limit headroom; the first failure cancels the rest.
func (o *Orchestrator) GenerateVariants(ctx context.Context, req types.GenerationRequest, n int) ([]types.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if n < 1 || n > MaxVariants {
		return nil, fmt.Errorf("%w: variants must be between 1 and %d", types.ErrValidation, MaxVariants)
	}

	text := prompt.Compose(req)
	results := make([]types.GenerationResult, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			resp, err := o.call(gctx, "variant", text, o.cfg.MaxTokens, o.cfg.Temperature)
			if err != nil {
				return err
			}
			results[i] = *toResult(resp)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// AnalyzeStyle extracts the author's style from posts. Parse failures are
// reported as analysis.ErrParse and are not retried.
func (o *Orchestrator) AnalyzeStyle(ctx context.Context, posts []types.HistoricalPost) (*types.StyleAnalysisResult, error) {
	if err := analysis.ValidatePostsForAnalysis(posts); err != nil {
		return nil, err
	}

	resp, err := o.call(ctx, "analyze", analysis.BuildAnalysisPrompt(posts), o.cfg.AnalysisMaxTokens, o.cfg.AnalysisTemperature)
	if err != nil {
		return nil, err
	}

	result, err := analysis.ParseAnalysisResponse(resp.Text, len(posts))
	if err != nil {
		o.log.Warn("style analysis reply rejected", "provider", o.provider.Name(), "error", err)
		return nil, err
	}
	return result, nil
}

// call reserves headroom for text and runs one backend call.
func (o *Orchestrator) call(ctx context.Context, op, text string, maxTokens int, temperature float64) (*llm.Response, error) {
	log := o.log.With("request_id", o.newID(), "op", op, "provider", o.provider.Name())
	estimated := prompt.EstimateTokenCount(text)

	if err := o.limiter.Acquire(ctx, estimated); err != nil {
		var exceeded *ratelimit.ExceededError
		if errors.As(err, &exceeded) {
			log.Warn("rate limit exceeded", "estimated_tokens", estimated, "retry_after_seconds", exceeded.RetryAfterSeconds())
		} else {
			log.Error("rate limiter unavailable", "error", err)
		}
		return nil, err
	}

	start := time.Now()
	resp, err := o.provider.Generate(ctx, llm.Request{
		Prompt:      text,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		log.Error("generation failed", "error", err, "retriable", llm.IsRetriable(err), "duration", time.Since(start))
		return nil, err
	}
	if resp == nil {
		err := &llm.BackendError{
			Provider: o.provider.Name(),
			Code:     "no_response",
			Err:      fmt.Errorf("%w: provider returned no response", llm.ErrEmptyResponse),
		}
		log.Error("generation failed", "error", err, "duration", time.Since(start))
		return nil, err
	}

	log.Info("generation completed",
		"estimated_tokens", estimated,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"model", resp.Model,
		"duration", time.Since(start),
	)
	return resp, nil
}

func toResult(resp *llm.Response) *types.GenerationResult {
	return &types.GenerationResult{
		Text:  resp.Text,
		Usage: resp.Usage,
		Model: resp.Model,
	}
}

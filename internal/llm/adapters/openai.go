// Package adapters provides LLM provider implementations.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/llm"
	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
	openai "github.com/sashabaranov/go-openai"
)

const openAIProviderName = "openai"

// OpenAIAdapter implements llm.Provider for the OpenAI API.
type OpenAIAdapter struct {
	client *openai.Client
	model  string
	config OpenAIConfig
}

// OpenAIConfig holds configuration for the OpenAI adapter.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string

	// Model is the model to use for completions.
	Model string

	// BaseURL overrides the default API URL (for Azure or compatible APIs).
	BaseURL string

	// Organization is the optional OpenAI organization ID.
	Organization string

	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// OpenAIOption configures an OpenAIAdapter.
type OpenAIOption func(*OpenAIConfig)

// WithOpenAIBaseURL sets a custom base URL.
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(c *OpenAIConfig) {
		c.BaseURL = baseURL
	}
}

// WithOpenAIOrganization sets the organization ID.
func WithOpenAIOrganization(org string) OpenAIOption {
	return func(c *OpenAIConfig) {
		c.Organization = org
	}
}

// WithOpenAITimeout sets the request timeout.
func WithOpenAITimeout(timeout time.Duration) OpenAIOption {
	return func(c *OpenAIConfig) {
		c.Timeout = timeout
	}
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(apiKey, model string, opts ...OpenAIOption) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", llm.ErrInvalidAPIKey)
	}

	if model == "" {
		model = "gpt-4o-mini"
	}

	config := OpenAIConfig{
		APIKey:  apiKey,
		Model:   model,
		Timeout: 120 * time.Second,
	}

	for _, opt := range opts {
		opt(&config)
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Organization != "" {
		clientConfig.OrgID = config.Organization
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		config: config,
	}, nil
}

// Generate sends the prompt as a single user message.
func (a *OpenAIAdapter) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.buildRequest(req))
	if err != nil {
		return nil, a.handleError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &llm.BackendError{
			Provider: openAIProviderName,
			Code:     "no_choices",
			Err:      fmt.Errorf("%w: no choices in response", llm.ErrEmptyResponse),
		}
	}

	choice := resp.Choices[0]
	return &llm.Response{
		Text: strings.TrimSpace(choice.Message.Content),
		Usage: types.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
	}, nil
}

// Name implements llm.Provider.
func (a *OpenAIAdapter) Name() string {
	return openAIProviderName
}

// Close releases resources held by the adapter.
func (a *OpenAIAdapter) Close() error {
	return nil
}

// ModelName returns the current model name.
func (a *OpenAIAdapter) ModelName() string {
	return a.model
}

func (a *OpenAIAdapter) buildRequest(req llm.Request) openai.ChatCompletionRequest {
	openAIReq := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}

	if req.MaxTokens > 0 {
		openAIReq.MaxTokens = req.MaxTokens
	}

	if req.Temperature > 0 {
		openAIReq.Temperature = float32(req.Temperature)
	}

	return openAIReq
}

// handleError converts OpenAI errors to *llm.BackendError.
func (a *OpenAIAdapter) handleError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
		return llm.StatusError(openAIProviderName, apiErr.HTTPStatusCode, code, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return llm.StatusError(openAIProviderName, reqErr.HTTPStatusCode, "", reqErr.Error())
	}

	return llm.TransportError(openAIProviderName, err)
}

// Verify OpenAIAdapter implements Provider interface.
var _ llm.Provider = (*OpenAIAdapter)(nil)

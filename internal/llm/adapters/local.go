package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/llm"
	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
)

const (
	localProviderName  = "local"
	defaultTimeout     = 120 * time.Second
	defaultMaxTokens   = 2048
	defaultTemperature = 0.7
)

// TokenCounter counts tokens when a server omits usage figures.
type TokenCounter interface {
	Count(text string) int
}

// LocalAdapter implements llm.Provider for local OpenAI-compatible APIs.
// It works with servers like Ollama, LM Studio, vLLM, and other compatible implementations.
type LocalAdapter struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
	counter TokenCounter
}

// LocalAdapterOption configures a LocalAdapter.
type LocalAdapterOption func(*LocalAdapter)

// WithTimeout sets a custom timeout for requests.
func WithTimeout(timeout time.Duration) LocalAdapterOption {
	return func(a *LocalAdapter) {
		a.client.Timeout = timeout
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) LocalAdapterOption {
	return func(a *LocalAdapter) {
		a.client = client
	}
}

// WithAPIKey sends key as a bearer token, for hosted compatible servers.
func WithAPIKey(key string) LocalAdapterOption {
	return func(a *LocalAdapter) {
		a.apiKey = key
	}
}

// WithTokenCounter fills in usage with counter when the server reports none.
func WithTokenCounter(counter TokenCounter) LocalAdapterOption {
	return func(a *LocalAdapter) {
		a.counter = counter
	}
}

// NewLocalAdapter creates a new LocalAdapter for OpenAI-compatible local servers.
// The baseURL should point to the server (e.g., "http://localhost:11434" for Ollama).
func NewLocalAdapter(baseURL, model string, opts ...LocalAdapterOption) *LocalAdapter {
	adapter := &LocalAdapter{
		client:  &http.Client{Timeout: defaultTimeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
	}

	for _, opt := range opts {
		opt(adapter)
	}

	return adapter
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Generate posts the prompt to /v1/chat/completions.
func (a *LocalAdapter) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	body, err := json.Marshal(a.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, llm.TransportError(localProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(resp)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, &llm.BackendError{
			Provider: localProviderName,
			Code:     "decode",
			Err:      fmt.Errorf("%w: failed to decode response: %v", llm.ErrAPIError, err),
		}
	}

	if len(chatResp.Choices) == 0 {
		return nil, &llm.BackendError{
			Provider: localProviderName,
			Code:     "no_choices",
			Err:      fmt.Errorf("%w: no choices in response", llm.ErrEmptyResponse),
		}
	}

	choice := chatResp.Choices[0]
	out := &llm.Response{
		Text: strings.TrimSpace(choice.Message.Content),
		Usage: types.TokenUsage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		},
		FinishReason: choice.FinishReason,
		Model:        chatResp.Model,
	}
	if out.Model == "" {
		out.Model = a.model
	}
	if out.Usage.TotalTokens == 0 && a.counter != nil {
		out.Usage.PromptTokens = a.counter.Count(req.Prompt)
		out.Usage.CompletionTokens = a.counter.Count(choice.Message.Content)
		out.Usage.TotalTokens = out.Usage.PromptTokens + out.Usage.CompletionTokens
	}
	return out, nil
}

// Name implements llm.Provider.
func (a *LocalAdapter) Name() string {
	return localProviderName
}

// Close releases resources held by the adapter.
func (a *LocalAdapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// ModelName returns the name of the model being used.
func (a *LocalAdapter) ModelName() string {
	return a.model
}

// BaseURL returns the base URL of the server.
func (a *LocalAdapter) BaseURL() string {
	return a.baseURL
}

func (a *LocalAdapter) buildRequest(req llm.Request) chatRequest {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	return chatRequest{
		Model:       a.model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

// handleErrorResponse converts a non-200 reply into *llm.BackendError.
func (a *LocalAdapter) handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	message := strings.TrimSpace(string(body))
	code := ""

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		if s, ok := errResp.Error.Code.(string); ok {
			code = s
		}
	}

	if resp.StatusCode == http.StatusBadRequest && code == "" &&
		strings.Contains(message, "context") && strings.Contains(message, "token") {
		code = "context_length_exceeded"
	}
	if resp.StatusCode == http.StatusNotFound && message == "" {
		message = fmt.Sprintf("model %q not found", a.model)
	}

	return llm.StatusError(localProviderName, resp.StatusCode, code, message)
}

// Verify LocalAdapter implements Provider interface.
var _ llm.Provider = (*LocalAdapter)(nil)

package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fixedCounter counts one token per byte.
type fixedCounter struct{}

func (fixedCounter) Count(text string) int { return len(text) }

func chatServer(t *testing.T, status int, body string, inspect func(r *http.Request, payload map[string]any)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if inspect != nil {
			inspect(r, payload)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// =============================================================================
// Local Adapter Tests
// =============================================================================

func TestLocalAdapter_Generate(t *testing.T) {
	body := `{"model":"llama3.2","choices":[{"message":{"role":"assistant","content":"  Hello world  "},"finish_reason":"stop"}],
		"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`

	srv := chatServer(t, http.StatusOK, body, func(r *http.Request, payload map[string]any) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "llama3.2", payload["model"])
		assert.Equal(t, float64(300), payload["max_tokens"])
		assert.InDelta(t, 0.3, payload["temperature"], 1e-9)

		messages := payload["messages"].([]any)
		require.Len(t, messages, 1)
		msg := messages[0].(map[string]any)
		assert.Equal(t, "user", msg["role"])
		assert.Equal(t, "Write a post", msg["content"])
	})

	adapter := NewLocalAdapter(srv.URL+"/", "llama3.2", WithAPIKey("secret"))
	resp, err := adapter.Generate(context.Background(), llm.Request{Prompt: "Write a post", MaxTokens: 300, Temperature: 0.3})
	require.NoError(t, err)

	assert.Equal(t, "Hello world", resp.Text)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "llama3.2", resp.Model)
	assert.Equal(t, llm.FinishReasonStop, resp.FinishReason)
	assert.Equal(t, srv.URL, adapter.BaseURL())
	assert.Equal(t, "local", adapter.Name())
}

func TestLocalAdapter_Defaults(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`, func(_ *http.Request, payload map[string]any) {
		assert.Equal(t, float64(defaultMaxTokens), payload["max_tokens"])
		assert.InDelta(t, defaultTemperature, payload["temperature"], 1e-9)
	})

	resp, err := NewLocalAdapter(srv.URL, "mistral").Generate(context.Background(), llm.Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "mistral", resp.Model)
	assert.Zero(t, resp.Usage.TotalTokens)
}

func TestLocalAdapter_UsageFallback(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"choices":[{"message":{"content":"four"}}]}`, nil)

	adapter := NewLocalAdapter(srv.URL, "m", WithTokenCounter(fixedCounter{}))
	resp, err := adapter.Generate(context.Background(), llm.Request{Prompt: "prompt"})
	require.NoError(t, err)

	assert.Equal(t, 6, resp.Usage.PromptTokens)
	assert.Equal(t, 4, resp.Usage.CompletionTokens)
	assert.Equal(t, 10, resp.Usage.TotalTokens)
}

func TestLocalAdapter_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantSentinel  error
		wantRetriable bool
		wantCode      string
	}{
		{
			name:         "unauthorized",
			status:       http.StatusUnauthorized,
			body:         `{"error":{"message":"bad key","code":"invalid_api_key"}}`,
			wantSentinel: llm.ErrInvalidAPIKey,
			wantCode:     "invalid_api_key",
		},
		{
			name:          "rate limited",
			status:        http.StatusTooManyRequests,
			body:          `slow down`,
			wantSentinel:  llm.ErrRateLimited,
			wantRetriable: true,
			wantCode:      "Too Many Requests",
		},
		{
			name:         "context too long",
			status:       http.StatusBadRequest,
			body:         `{"error":{"message":"prompt exceeds context window of 4096 tokens"}}`,
			wantSentinel: llm.ErrContextTooLong,
			wantCode:     "context_length_exceeded",
		},
		{
			name:         "model missing",
			status:       http.StatusNotFound,
			body:         ``,
			wantSentinel: llm.ErrModelNotFound,
			wantCode:     "Not Found",
		},
		{
			name:          "server error",
			status:        http.StatusServiceUnavailable,
			body:          `{"error":{"message":"loading model","code":503}}`,
			wantSentinel:  llm.ErrAPIError,
			wantRetriable: true,
			wantCode:      "Service Unavailable",
		},
		{
			name:         "empty choices",
			status:       http.StatusOK,
			body:         `{"choices":[]}`,
			wantSentinel: llm.ErrEmptyResponse,
			wantCode:     "no_choices",
		},
		{
			name:         "undecodable body",
			status:       http.StatusOK,
			body:         `not json`,
			wantSentinel: llm.ErrAPIError,
			wantCode:     "decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.status, tt.body, nil)

			_, err := NewLocalAdapter(srv.URL, "m").Generate(context.Background(), llm.Request{Prompt: "p"})
			require.Error(t, err)

			var be *llm.BackendError
			require.True(t, errors.As(err, &be))
			assert.ErrorIs(t, err, tt.wantSentinel)
			assert.Equal(t, tt.wantRetriable, be.Retriable)
			assert.Equal(t, tt.wantCode, be.Code)
			assert.Equal(t, "local", be.Provider)
		})
	}
}

func TestLocalAdapter_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewLocalAdapter(srv.URL, "m").Generate(ctx, llm.Request{Prompt: "p"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// =============================================================================
// OpenAI Adapter Tests
// =============================================================================

func TestNewOpenAIAdapter_RequiresKey(t *testing.T) {
	_, err := NewOpenAIAdapter("", "gpt-4o")
	assert.ErrorIs(t, err, llm.ErrInvalidAPIKey)
}

func TestOpenAIAdapter_Generate(t *testing.T) {
	body := `{"id":"1","object":"chat.completion","model":"gpt-4o-mini-2024",
		"choices":[{"index":0,"message":{"role":"assistant","content":"A post"},"finish_reason":"stop"}],
		"usage":{"prompt_tokens":20,"completion_tokens":5,"total_tokens":25}}`

	srv := chatServer(t, http.StatusOK, body, func(r *http.Request, payload map[string]any) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "gpt-4o-mini", payload["model"])
		assert.Equal(t, float64(500), payload["max_tokens"])
	})

	adapter, err := NewOpenAIAdapter("sk-test", "", WithOpenAIBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	resp, err := adapter.Generate(context.Background(), llm.Request{Prompt: "Write", MaxTokens: 500, Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "A post", resp.Text)
	assert.Equal(t, 25, resp.Usage.TotalTokens)
	assert.Equal(t, "gpt-4o-mini-2024", resp.Model)
	assert.Equal(t, "gpt-4o-mini", adapter.ModelName())
}

func TestOpenAIAdapter_APIError(t *testing.T) {
	body := `{"error":{"message":"This model's maximum context length is 8192 tokens","type":"invalid_request_error","code":"context_length_exceeded"}}`
	srv := chatServer(t, http.StatusBadRequest, body, nil)

	adapter, err := NewOpenAIAdapter("sk-test", "gpt-4", WithOpenAIBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	_, err = adapter.Generate(context.Background(), llm.Request{Prompt: "p"})
	assert.ErrorIs(t, err, llm.ErrContextTooLong)
	assert.False(t, llm.IsRetriable(err))
}

func TestOpenAIAdapter_RateLimited(t *testing.T) {
	body := `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`
	srv := chatServer(t, http.StatusTooManyRequests, body, nil)

	adapter, err := NewOpenAIAdapter("sk-test", "gpt-4o", WithOpenAIBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	_, err = adapter.Generate(context.Background(), llm.Request{Prompt: "p"})
	assert.ErrorIs(t, err, llm.ErrRateLimited)
	assert.True(t, llm.IsRetriable(err))
}

// =============================================================================
// Gemini Adapter Tests
// =============================================================================

func TestNewGeminiAdapter_RequiresKey(t *testing.T) {
	_, err := NewGeminiAdapter(context.Background(), "", "gemini-2.5-flash")
	assert.ErrorIs(t, err, llm.ErrInvalidAPIKey)
}

func TestGeminiAdapter_ConvertResponse(t *testing.T) {
	a := &GeminiAdapter{model: "gemini-2.5-flash"}

	resp, err := a.convertResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "Hello "},
				{Text: "there"},
			}},
			FinishReason: genai.FinishReasonMaxTokens,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 4,
			TotalTokenCount:      14,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello there", resp.Text)
	assert.Equal(t, llm.FinishReasonLength, resp.FinishReason)
	assert.Equal(t, 14, resp.Usage.TotalTokens)
	assert.Equal(t, "gemini-2.5-flash", resp.Model)
}

func TestGeminiAdapter_ConvertResponse_NoCandidates(t *testing.T) {
	a := &GeminiAdapter{model: "m"}

	_, err := a.convertResponse(&genai.GenerateContentResponse{})
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestGeminiAdapter_WrapError(t *testing.T) {
	a := &GeminiAdapter{model: "m"}

	tests := []struct {
		name          string
		err           error
		wantSentinel  error
		wantRetriable bool
	}{
		{name: "quota", err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}, wantSentinel: llm.ErrRateLimited, wantRetriable: true},
		{name: "bad key", err: genai.APIError{Code: 403, Status: "PERMISSION_DENIED", Message: "API key not valid"}, wantSentinel: llm.ErrInvalidAPIKey},
		{name: "too many tokens", err: genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "input token count exceeds the maximum"}, wantSentinel: llm.ErrContextTooLong},
		{name: "unavailable", err: genai.APIError{Code: 503, Status: "UNAVAILABLE", Message: "overloaded"}, wantSentinel: llm.ErrAPIError, wantRetriable: true},
		{name: "network", err: errors.New("connection reset"), wantSentinel: llm.ErrAPIError, wantRetriable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.wrapError(tt.err)
			assert.ErrorIs(t, err, tt.wantSentinel)
			assert.Equal(t, tt.wantRetriable, llm.IsRetriable(err))
		})
	}
}

package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/llm"
	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
	"google.golang.org/genai"
)

const geminiProviderName = "gemini"

// GeminiAdapter implements llm.Provider for Google's Gemini API.
type GeminiAdapter struct {
	client *genai.Client
	model  string
}

// NewGeminiAdapter creates a new GeminiAdapter for Google's Gemini API.
// The model should be the model name to use (e.g., "gemini-2.5-flash").
func NewGeminiAdapter(ctx context.Context, apiKey, model string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", llm.ErrInvalidAPIKey)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiAdapter{
		client: client,
		model:  model,
	}, nil
}

// Generate sends the prompt as a single user turn.
func (a *GeminiAdapter) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	result, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(req.Prompt), a.buildConfig(req))
	if err != nil {
		return nil, a.wrapError(err)
	}
	return a.convertResponse(result)
}

// Name implements llm.Provider.
func (a *GeminiAdapter) Name() string {
	return geminiProviderName
}

// Close releases resources held by the adapter.
func (a *GeminiAdapter) Close() error {
	// The genai client doesn't have a Close method.
	return nil
}

// ModelName returns the name of the model being used.
func (a *GeminiAdapter) ModelName() string {
	return a.model
}

func (a *GeminiAdapter) buildConfig(req llm.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(req.Temperature))
	}

	return config
}

func (a *GeminiAdapter) convertResponse(result *genai.GenerateContentResponse) (*llm.Response, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, &llm.BackendError{
			Provider: geminiProviderName,
			Code:     "no_candidates",
			Err:      fmt.Errorf("%w: no candidates in response", llm.ErrEmptyResponse),
		}
	}

	candidate := result.Candidates[0]

	var parts []string
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				parts = append(parts, part.Text)
			}
		}
	}

	response := &llm.Response{
		Text:         strings.TrimSpace(strings.Join(parts, "")),
		Model:        a.model,
		FinishReason: convertFinishReason(candidate.FinishReason),
	}
	if result.ModelVersion != "" {
		response.Model = result.ModelVersion
	}
	if result.UsageMetadata != nil {
		response.Usage = types.TokenUsage{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
		}
	}
	return response, nil
}

func convertFinishReason(reason genai.FinishReason) string {
	switch reason {
	case genai.FinishReasonStop:
		return llm.FinishReasonStop
	case genai.FinishReasonMaxTokens:
		return llm.FinishReasonLength
	case genai.FinishReasonSafety, genai.FinishReasonRecitation, genai.FinishReasonBlocklist:
		return llm.FinishReasonFilter
	default:
		return string(reason)
	}
}

// wrapError converts Gemini errors to *llm.BackendError.
func (a *GeminiAdapter) wrapError(err error) error {
	apiErr, ok := asAPIError(err)
	if !ok {
		return llm.TransportError(geminiProviderName, err)
	}

	code := apiErr.Status
	if apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Message), "token") {
		code = "context_length_exceeded"
	}
	return llm.StatusError(geminiProviderName, apiErr.Code, code, apiErr.Message)
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}

// Verify GeminiAdapter implements Provider interface.
var _ llm.Provider = (*GeminiAdapter)(nil)

package token

// ModelContextLimits maps model names to their context window sizes.
var ModelContextLimits = map[string]int{
	"gpt-4o":           128000,
	"gpt-4o-mini":      128000,
	"gpt-4-turbo":      128000,
	"gpt-4":            8192,
	"gpt-3.5-turbo":    16385,
	"gemini-2.5-flash": 1048576,
	"gemini-2.5-pro":   1048576,
	"gemini-2.0-flash": 1000000,
	"gemini-1.5-pro":   2000000,
	"gemini-1.5-flash": 1000000,
}

// DefaultContextLimit is used when the model is not recognized.
const DefaultContextLimit = 8192

// ContextLimit returns the context window of model, or DefaultContextLimit.
func ContextLimit(model string) int {
	if limit, ok := ModelContextLimits[model]; ok {
		return limit
	}
	return DefaultContextLimit
}

// Budget describes how a prompt and its reserved completion fit a model.
type Budget struct {
	Model            string
	ContextLimit     int
	PromptTokens     int
	CompletionTokens int
}

// NewBudget computes the budget of a prompt of promptTokens that asks for at
// most completionTokens back.
func NewBudget(model string, promptTokens, completionTokens int) Budget {
	return Budget{
		Model:            model,
		ContextLimit:     ContextLimit(model),
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}
}

// Remaining is the unused part of the context window. Negative when over.
func (b Budget) Remaining() int {
	return b.ContextLimit - b.PromptTokens - b.CompletionTokens
}

// Fits reports whether the prompt and the completion fit the window.
func (b Budget) Fits() bool {
	return b.Remaining() >= 0
}

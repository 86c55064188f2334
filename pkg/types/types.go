// Package types provides shared data models for brandium.
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrValidation is returned when a required input is missing or malformed.
var ErrValidation = errors.New("validation failed")

// GenerationRequest is the input to a single post generation.
type GenerationRequest struct {
	RawIdea  string           `yaml:"raw_idea" json:"raw_idea"`
	Goal     string           `yaml:"goal,omitempty" json:"goal,omitempty"`
	Profile  *ProfileContext  `yaml:"profile,omitempty" json:"profile,omitempty"`
	Project  *ProjectContext  `yaml:"project,omitempty" json:"project,omitempty"`
	Platform *PlatformContext `yaml:"platform,omitempty" json:"platform,omitempty"`
}

// Validate checks the request invariants.
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.RawIdea) == "" {
		return fmt.Errorf("%w: raw idea is required", ErrValidation)
	}
	return nil
}

// ProfileContext is a snapshot of the author's voice.
type ProfileContext struct {
	Name      string   `yaml:"name" json:"name"`
	Bio       string   `yaml:"bio,omitempty" json:"bio,omitempty"`
	ToneTags  []string `yaml:"tone_tags,omitempty" json:"tone_tags,omitempty"`
	DoRules   []string `yaml:"do_rules,omitempty" json:"do_rules,omitempty"`
	DontRules []string `yaml:"dont_rules,omitempty" json:"dont_rules,omitempty"`
}

// ProjectContext describes what the author is currently promoting.
type ProjectContext struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Audience    string   `yaml:"audience,omitempty" json:"audience,omitempty"`
	KeyMessages []string `yaml:"key_messages,omitempty" json:"key_messages,omitempty"`
}

// PlatformContext describes where the post will be published.
// MaxLength of zero means no limit.
type PlatformContext struct {
	Name            string `yaml:"name" json:"name"`
	StyleGuidelines string `yaml:"style_guidelines,omitempty" json:"style_guidelines,omitempty"`
	MaxLength       int    `yaml:"max_length,omitempty" json:"max_length,omitempty"`
}

// Brief bundles the optional generation contexts, as stored in brief files.
type Brief struct {
	Profile  *ProfileContext  `yaml:"profile,omitempty"`
	Project  *ProjectContext  `yaml:"project,omitempty"`
	Platform *PlatformContext `yaml:"platform,omitempty"`
}

// TokenUsage contains token usage statistics for a generation call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerationResult is the backend output returned to the caller unmodified.
type GenerationResult struct {
	Text  string     `json:"text"`
	Usage TokenUsage `json:"usage"`
	Model string     `json:"model,omitempty"`
}

// VariableSpec declares one template placeholder.
type VariableSpec struct {
	Name         string `yaml:"name" json:"name"`
	Required     bool   `yaml:"required" json:"required"`
	DefaultValue string `yaml:"default,omitempty" json:"default_value,omitempty"`
}

// TemplateDefinition is a reusable post scaffold with {{variable}} slots.
type TemplateDefinition struct {
	Name      string         `yaml:"name" json:"name"`
	Content   string         `yaml:"content" json:"content"`
	Variables []VariableSpec `yaml:"variables" json:"variables"`
}

// RenderResult is the outcome of rendering a template.
// Content is empty whenever MissingVariables is not.
type RenderResult struct {
	Content          string   `json:"content"`
	MissingVariables []string `json:"missing_variables"`
	Warnings         []string `json:"warnings"`
}

// Engagement holds the metrics recorded for a published post.
type Engagement struct {
	Likes       int `yaml:"likes,omitempty" json:"likes,omitempty"`
	Comments    int `yaml:"comments,omitempty" json:"comments,omitempty"`
	Shares      int `yaml:"shares,omitempty" json:"shares,omitempty"`
	Impressions int `yaml:"impressions,omitempty" json:"impressions,omitempty"`
}

// IsZero reports whether no metric was recorded.
func (e Engagement) IsZero() bool {
	return e.Likes == 0 && e.Comments == 0 && e.Shares == 0 && e.Impressions == 0
}

// HistoricalPost is a previously published post used for style analysis.
type HistoricalPost struct {
	Content     string      `yaml:"content" json:"content"`
	PublishedAt *time.Time  `yaml:"published_at,omitempty" json:"published_at,omitempty"`
	Engagement  *Engagement `yaml:"engagement,omitempty" json:"engagement,omitempty"`
}

// StyleInsights are the categorical style observations of an analysis.
type StyleInsights struct {
	AverageLength     string `json:"averageLength"`
	EmojiUsage        string `json:"emojiUsage"`
	HashtagUsage      string `json:"hashtagUsage"`
	QuestionUsage     string `json:"questionUsage"`
	CallToActionUsage string `json:"callToActionUsage"`
}

// StyleAnalysisResult is a validated style analysis of historical posts.
type StyleAnalysisResult struct {
	ToneTags      []string      `json:"toneTags"`
	DoRules       []string      `json:"doRules"`
	DontRules     []string      `json:"dontRules"`
	StyleInsights StyleInsights `json:"styleInsights"`
	Confidence    float64       `json:"confidence"`
}

// IterationIntent names the kind of revision requested for an existing post.
type IterationIntent string

const (
	IntentShorter      IterationIntent = "shorter"
	IntentStrongerHook IterationIntent = "stronger_hook"
	IntentMorePersonal IterationIntent = "more_personal"
	IntentAddData      IterationIntent = "add_data"
	IntentSimplify     IterationIntent = "simplify"
	IntentCustom       IterationIntent = "custom"
)

// IterationIntents lists every intent in display order.
var IterationIntents = []IterationIntent{
	IntentShorter, IntentStrongerHook, IntentMorePersonal, IntentAddData, IntentSimplify, IntentCustom,
}

// Valid reports whether i is a known intent.
func (i IterationIntent) Valid() bool {
	switch i {
	case IntentShorter, IntentStrongerHook, IntentMorePersonal, IntentAddData, IntentSimplify, IntentCustom:
		return true
	}
	return false
}

// IterationRequest asks for a revision of a previously generated post.
// Feedback is only read for IntentCustom.
type IterationRequest struct {
	PreviousPost string           `json:"previous_post"`
	Intent       IterationIntent  `json:"intent"`
	Feedback     string           `json:"feedback,omitempty"`
	Profile      *ProfileContext  `json:"profile,omitempty"`
	Project      *ProjectContext  `json:"project,omitempty"`
	Platform     *PlatformContext `json:"platform,omitempty"`
}

// Validate checks the request invariants.
func (r IterationRequest) Validate() error {
	if strings.TrimSpace(r.PreviousPost) == "" {
		return fmt.Errorf("%w: previous post is required", ErrValidation)
	}
	if !r.Intent.Valid() {
		return fmt.Errorf("%w: unknown iteration intent %q", ErrValidation, r.Intent)
	}
	if r.Intent == IntentCustom && strings.TrimSpace(r.Feedback) == "" {
		return fmt.Errorf("%w: custom intent requires feedback", ErrValidation)
	}
	return nil
}

// HookType is the rhetorical style of a hook.
type HookType string

const (
	HookQuestion    HookType = "question"
	HookStat        HookType = "stat"
	HookStory       HookType = "story"
	HookBoldOpinion HookType = "bold_opinion"
)

// HookTypes lists every hook type in prompt order.
var HookTypes = []HookType{HookQuestion, HookStat, HookStory, HookBoldOpinion}

// Valid reports whether t is a known hook type.
func (t HookType) Valid() bool {
	switch t {
	case HookQuestion, HookStat, HookStory, HookBoldOpinion:
		return true
	}
	return false
}

// DefaultHookCount is the number of hooks requested when HookRequest.Count is zero.
const DefaultHookCount = 4

// HookRequest asks for opening lines for an idea.
type HookRequest struct {
	RawIdea  string           `json:"raw_idea"`
	Goal     string           `json:"goal,omitempty"`
	Count    int              `json:"count,omitempty"`
	Profile  *ProfileContext  `json:"profile,omitempty"`
	Project  *ProjectContext  `json:"project,omitempty"`
	Platform *PlatformContext `json:"platform,omitempty"`
}

// Validate checks the request invariants.
func (r HookRequest) Validate() error {
	if strings.TrimSpace(r.RawIdea) == "" {
		return fmt.Errorf("%w: raw idea is required", ErrValidation)
	}
	if r.Count < 0 || r.Count > 10 {
		return fmt.Errorf("%w: hook count must be between 1 and 10", ErrValidation)
	}
	return nil
}

// HookSuggestion is one candidate opening line.
type HookSuggestion struct {
	Type                HookType `json:"type"`
	Text                string   `json:"text"`
	EstimatedEngagement int      `json:"estimatedEngagement"`
}

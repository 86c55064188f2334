// Package analysis extracts an author's writing style from historical posts.
//
// It builds the style-extraction prompt, validates and parses the model's
// JSON reply, and merges suggestions into an existing profile. Nothing here
// calls a backend.
package analysis

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
)

// Analysis errors.
var (
	// ErrInsufficientData is returned when too few usable posts are supplied.
	ErrInsufficientData = errors.New("insufficient data for analysis")

	// ErrParse is returned when a model reply does not have the required shape.
	ErrParse = errors.New("could not parse model response")
)

const (
	// MinPosts is the minimum number of usable posts for an analysis.
	MinPosts = 5

	// MinContentLength is the trimmed length a post must exceed to be usable.
	MinContentLength = 20

	// MaxPromptPosts caps how many posts are embedded in the prompt.
	MaxPromptPosts = 50

	// MaxItems caps every list in a parsed result.
	MaxItems = 10
)

// ValidatePostsForAnalysis checks that posts can back a style analysis.
func ValidatePostsForAnalysis(posts []types.HistoricalPost) error {
	if len(posts) < MinPosts {
		return fmt.Errorf("%w: need at least %d posts, got %d", ErrInsufficientData, MinPosts, len(posts))
	}

	usable := 0
	for _, p := range posts {
		if utf8.RuneCountInString(strings.TrimSpace(p.Content)) > MinContentLength {
			usable++
		}
	}
	if usable < MinPosts {
		return fmt.Errorf("%w: need at least %d posts longer than %d characters, got %d",
			ErrInsufficientData, MinPosts, MinContentLength, usable)
	}
	return nil
}

// CalculateConfidence maps the number of analyzed posts to a confidence score.
func CalculateConfidence(postCount int) float64 {
	switch {
	case postCount < 5:
		return 0.3
	case postCount < 10:
		return 0.5
	case postCount < 15:
		return 0.7
	case postCount < 25:
		return 0.85
	default:
		return 0.95
	}
}

const analysisInstructions = `Analyze the writing style of the posts above and describe the author's voice.

Return:
- toneTags: 3 to 8 short adjectives describing the author's consistent tone.
- doRules: up to 10 concrete stylistic habits the author follows.
- dontRules: up to 10 concrete things the author avoids.
- styleInsights:
  - averageLength: one of "short", "medium", "long"
  - emojiUsage: one of "none", "minimal", "moderate", "heavy"
  - hashtagUsage: one of "none", "minimal", "moderate", "heavy"
  - questionUsage: one of "low", "medium", "high"
  - callToActionUsage: one of "low", "medium", "high"

Respond with a single JSON object and nothing else. No prose, no code fences:
{"toneTags": ["..."], "doRules": ["..."], "dontRules": ["..."], "styleInsights": {"averageLength": "medium", "emojiUsage": "minimal", "hashtagUsage": "minimal", "questionUsage": "low", "callToActionUsage": "low"}}`

// BuildAnalysisPrompt formats posts for style extraction. Callers validate
// posts with ValidatePostsForAnalysis first. Only the first MaxPromptPosts
// posts are embedded.
func BuildAnalysisPrompt(posts []types.HistoricalPost) string {
	if len(posts) > MaxPromptPosts {
		posts = posts[:MaxPromptPosts]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Here are %d posts written by the same author.\n\n", len(posts))
	for i, p := range posts {
		fmt.Fprintf(&sb, "### Post %d", i+1)
		if p.PublishedAt != nil {
			fmt.Fprintf(&sb, " (published %s)", p.PublishedAt.Format("2006-01-02"))
		}
		sb.WriteString("\n")
		sb.WriteString(strings.TrimSpace(p.Content))
		sb.WriteString("\n")
		if p.Engagement != nil && !p.Engagement.IsZero() {
			e := p.Engagement
			fmt.Fprintf(&sb, "Engagement: %d likes, %d comments, %d shares, %d impressions\n",
				e.Likes, e.Comments, e.Shares, e.Impressions)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(analysisInstructions)
	return sb.String()
}

package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
)

// Allowed values of each style insight, with the default used when the
// model returns anything else.
var (
	averageLengths = vocabulary{values: []string{"short", "medium", "long"}, fallback: "medium"}
	usageLevels    = vocabulary{values: []string{"none", "minimal", "moderate", "heavy"}, fallback: "minimal"}
	frequencies    = vocabulary{values: []string{"low", "medium", "high"}, fallback: "low"}
)

type vocabulary struct {
	values   []string
	fallback string
}

func (v vocabulary) normalize(raw any) string {
	s, ok := raw.(string)
	if !ok {
		return v.fallback
	}
	s = strings.ToLower(strings.TrimSpace(s))
	for _, allowed := range v.values {
		if s == allowed {
			return s
		}
	}
	return v.fallback
}

// ParseAnalysisResponse validates a model reply and turns it into a result.
//
// The reply must contain a JSON object with array-typed toneTags, doRules and
// dontRules and an object-typed styleInsights; otherwise ErrParse is
// returned. Insight values outside their vocabulary fall back to defaults.
func ParseAnalysisResponse(raw string, postCount int) (*types.StyleAnalysisResult, error) {
	body, ok := extractJSON(raw, '{', '}')
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object found", ErrParse)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	toneTags, err := stringArray(fields, "toneTags")
	if err != nil {
		return nil, err
	}
	doRules, err := stringArray(fields, "doRules")
	if err != nil {
		return nil, err
	}
	dontRules, err := stringArray(fields, "dontRules")
	if err != nil {
		return nil, err
	}

	var insights map[string]any
	rawInsights, ok := fields["styleInsights"]
	if !ok {
		return nil, fmt.Errorf("%w: missing field styleInsights", ErrParse)
	}
	if err := json.Unmarshal(rawInsights, &insights); err != nil || insights == nil {
		return nil, fmt.Errorf("%w: styleInsights must be an object", ErrParse)
	}

	return &types.StyleAnalysisResult{
		ToneTags:  toneTags,
		DoRules:   doRules,
		DontRules: dontRules,
		StyleInsights: types.StyleInsights{
			AverageLength:     averageLengths.normalize(insights["averageLength"]),
			EmojiUsage:        usageLevels.normalize(insights["emojiUsage"]),
			HashtagUsage:      usageLevels.normalize(insights["hashtagUsage"]),
			QuestionUsage:     frequencies.normalize(insights["questionUsage"]),
			CallToActionUsage: frequencies.normalize(insights["callToActionUsage"]),
		},
		Confidence: CalculateConfidence(postCount),
	}, nil
}

// stringArray reads a required array field. Non-string and blank entries
// are dropped and the result is capped at MaxItems.
func stringArray(fields map[string]json.RawMessage, name string) ([]string, error) {
	raw, ok := fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing field %s", ErrParse, name)
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, fmt.Errorf("%w: %s must be an array", ErrParse, name)
	}

	out := make([]string, 0, min(len(items), MaxItems))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == MaxItems {
			break
		}
	}
	return out, nil
}

type rawHook struct {
	Type                string `json:"type"`
	Text                string `json:"text"`
	EstimatedEngagement any    `json:"estimatedEngagement"`
}

// DefaultEngagement is used when a hook carries no usable rating.
const DefaultEngagement = 5

// ParseHookResponse reads hook suggestions from a model reply. Both a bare
// JSON array and an object with a "hooks" array are accepted. Entries with an
// unknown type, empty text or malformed fields are dropped and ratings are
// clamped to [1,10].
// A reply without any valid hook yields ErrParse.
func ParseHookResponse(raw string) ([]types.HookSuggestion, error) {
	body, ok := extractJSONValue(raw)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON found", ErrParse)
	}

	var entries []json.RawMessage
	if strings.HasPrefix(body, "{") {
		var wrapped struct {
			Hooks []json.RawMessage `json:"hooks"`
		}
		if err := json.Unmarshal([]byte(body), &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		entries = wrapped.Hooks
	} else if err := json.Unmarshal([]byte(body), &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	hooks := make([]types.HookSuggestion, 0, len(entries))
	for _, entry := range entries {
		var e rawHook
		if err := json.Unmarshal(entry, &e); err != nil {
			continue
		}
		ht := types.HookType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(e.Type)), " ", "_"))
		text := strings.TrimSpace(e.Text)
		if !ht.Valid() || text == "" {
			continue
		}
		hooks = append(hooks, types.HookSuggestion{
			Type:                ht,
			Text:                text,
			EstimatedEngagement: engagementScore(e.EstimatedEngagement),
		})
		if len(hooks) == MaxItems {
			break
		}
	}

	if len(hooks) == 0 {
		return nil, fmt.Errorf("%w: no valid hooks in response", ErrParse)
	}
	return hooks, nil
}

func engagementScore(v any) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return DefaultEngagement
		}
		f = parsed
	default:
		return DefaultEngagement
	}
	if math.IsNaN(f) {
		return DefaultEngagement
	}
	return int(math.Max(1, math.Min(10, math.Round(f))))
}

// extractJSONValue returns the first balanced, valid JSON object or array in s.
func extractJSONValue(s string) (string, bool) {
	obj, objOK := extractJSON(s, '{', '}')
	arr, arrOK := extractJSON(s, '[', ']')
	switch {
	case objOK && arrOK:
		if strings.Index(s, arr) < strings.Index(s, obj) {
			return arr, true
		}
		return obj, true
	case objOK:
		return obj, true
	case arrOK:
		return arr, true
	}
	return "", false
}

// maxJSONCandidates bounds how many opening brackets extractJSON tries, so
// unbalanced input stays linear.
const maxJSONCandidates = 32

// extractJSON returns the first substring of s that starts with open, ends
// with the matching close and is valid JSON. Brackets inside JSON strings are
// ignored while matching.
func extractJSON(s string, open, close byte) (string, bool) {
	tries := 0
	for start := strings.IndexByte(s, open); start >= 0 && tries < maxJSONCandidates; tries++ {
		if end, ok := matchBracket(s, start, open, close); ok {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(s[start+1:], open)
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBracket(s string, start int, open, close byte) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

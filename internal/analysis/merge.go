package analysis

import (
	"strings"

	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
)

// MergeToneTags appends the suggested tags that existing does not already
// contain. Comparison is case-insensitive; existing entries keep their
// spelling and order.
func MergeToneTags(existing, suggested []string) []string {
	return mergeUnique(existing, suggested)
}

// MergeRules merges DO or DON'T rules the same way as MergeToneTags.
func MergeRules(existing, suggested []string) []string {
	return mergeUnique(existing, suggested)
}

// ApplyToProfile returns a copy of profile with the analysis suggestions
// merged in. A nil profile yields a profile built from the result alone.
func ApplyToProfile(profile *types.ProfileContext, result *types.StyleAnalysisResult) *types.ProfileContext {
	merged := types.ProfileContext{}
	if profile != nil {
		merged = *profile
	}
	if result == nil {
		return &merged
	}
	merged.ToneTags = MergeToneTags(merged.ToneTags, result.ToneTags)
	merged.DoRules = MergeRules(merged.DoRules, result.DoRules)
	merged.DontRules = MergeRules(merged.DontRules, result.DontRules)
	return &merged
}

func mergeUnique(existing, suggested []string) []string {
	out := make([]string, 0, len(existing)+len(suggested))
	seen := make(map[string]struct{}, len(existing)+len(suggested))

	out = append(out, existing...)
	for _, e := range existing {
		seen[key(e)] = struct{}{}
	}

	for _, s := range suggested {
		k := key(s)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

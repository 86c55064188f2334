package prompt

import (
	"fmt"
	"strings"

	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
)

var hookDescriptions = map[types.HookType]string{
	types.HookQuestion:    "a question the reader wants answered",
	types.HookStat:        "a striking number or statistic",
	types.HookStory:       "the first line of a short personal story",
	types.HookBoldOpinion: "a confident, slightly contrarian statement",
}

// ComposeHooks builds the prompt asking for opening lines. The reply is
// expected as a strict JSON array.
func ComposeHooks(req types.HookRequest) string {
	count := req.Count
	if count <= 0 {
		count = types.DefaultHookCount
	}

	var task strings.Builder
	task.WriteString("# TASK\n\n")
	if g := strings.TrimSpace(req.Goal); g != "" {
		fmt.Fprintf(&task, "Goal: %s\n\n", g)
	}
	task.WriteString("Raw idea:\n")
	task.WriteString(req.RawIdea)
	task.WriteString("\n\n")
	fmt.Fprintf(&task, "Write %d different opening hooks for a post about this idea. Use these hook types:\n", count)
	for _, ht := range types.HookTypes {
		fmt.Fprintf(&task, "- %s: %s\n", ht, hookDescriptions[ht])
	}
	task.WriteString(`
Rate each hook's expected engagement from 1 (weak) to 10 (exceptional).

Respond with a JSON array only, no prose and no code fences:
[{"type": "question", "text": "...", "estimatedEngagement": 7}]`)

	return NewBuilder().
		AddContext(req.Profile, req.Project, req.Platform).
		Add(task.String()).
		Build()
}

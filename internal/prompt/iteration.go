package prompt

import (
	"fmt"
	"strings"

	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
)

// IntentInfo describes how a revision intent changes a post.
type IntentInfo struct {
	Description string
	Focus       string
	Example     string
}

var intents = map[types.IterationIntent]IntentInfo{
	types.IntentShorter: {
		Description: "Make the post shorter",
		Focus:       "Cut filler and repetition. Keep the core message and the strongest sentence.",
		Example:     "Turn a five paragraph story into three tight paragraphs.",
	},
	types.IntentStrongerHook: {
		Description: "Strengthen the opening hook",
		Focus:       "Rewrite the first one or two lines so they stop the scroll. Leave the body mostly intact.",
		Example:     "Replace \"Today I want to talk about testing\" with \"We shipped 40 bugs last quarter. Here is what stopped it.\"",
	},
	types.IntentMorePersonal: {
		Description: "Make the post more personal",
		Focus:       "Add first-person experience, feelings and concrete moments from the author's own work.",
		Example:     "Add the moment the author realized the approach was wrong.",
	},
	types.IntentAddData: {
		Description: "Back the post with data",
		Focus:       "Add figures, measurements or concrete results. Never invent precise numbers; use clearly marked placeholders like [X%] when a figure is unknown.",
		Example:     "Add \"deploy time went from 40 to [X] minutes\".",
	},
	types.IntentSimplify: {
		Description: "Simplify the language",
		Focus:       "Use short sentences and everyday words. Remove jargon or explain it.",
		Example:     "Replace \"leverage synergies\" with \"work together\".",
	},
	types.IntentCustom: {
		Description: "Apply the author's feedback",
		Focus:       "Follow the feedback below exactly while keeping the author's voice.",
	},
}

// LookupIntent returns the metadata of intent.
func LookupIntent(intent types.IterationIntent) (IntentInfo, bool) {
	info, ok := intents[intent]
	return info, ok
}

const iterationInstructions = `Instructions:
1. Revise the previous post according to the requested change only.
2. Keep the author's voice, tone tags and rules when they are provided.
3. Respect the platform guidelines and character limit when they are provided.
4. Output only the revised post text, with no preamble, explanation or surrounding quotes.`

// ComposeIteration builds the revision prompt for req. It fails with
// types.ErrValidation when req is not valid.
func ComposeIteration(req types.IterationRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	info, ok := LookupIntent(req.Intent)
	if !ok {
		return "", fmt.Errorf("%w: unknown iteration intent %q", types.ErrValidation, req.Intent)
	}

	var task strings.Builder
	task.WriteString("# REVISION\n\n")
	fmt.Fprintf(&task, "Change requested: %s\n", info.Description)
	fmt.Fprintf(&task, "Focus: %s\n", info.Focus)
	if info.Example != "" {
		fmt.Fprintf(&task, "Example: %s\n", info.Example)
	}
	if req.Intent == types.IntentCustom {
		fmt.Fprintf(&task, "\nFeedback:\n%s\n", strings.TrimSpace(req.Feedback))
	}
	task.WriteString("\n")
	task.WriteString(iterationInstructions)

	return NewBuilder().
		AddContext(req.Profile, req.Project, req.Platform).
		Add("# PREVIOUS POST\n\n" + req.PreviousPost).
		Add(task.String()).
		Build(), nil
}

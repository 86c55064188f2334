// Package prompt assembles the text prompts sent to the generation backend.
//
// A prompt is a list of Markdown-like sections joined by SectionSeparator.
// Context sections (profile, project, platform) are included only when their
// record carries at least one non-blank field; the task section is always
// present and always last.
package prompt

import (
	"fmt"
	"strings"

	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/token"
	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
)

// SectionSeparator joins prompt sections.
const SectionSeparator = "\n\n---\n\n"

// taskInstructions is the fixed instruction block of the generation task.
const taskInstructions = `Instructions:
1. Transform the raw idea into exactly one post ready to publish on the target platform.
2. Write in the author's voice: follow the tone tags, the DO rules and the DON'T rules above when they are provided.
3. Weave in the project context and key messages only where they fit naturally.
4. Respect the platform guidelines and character limit when they are provided.
5. Open with a line that makes the reader want to keep reading.
6. Output only the final post text, with no title, preamble, explanation or surrounding quotes.`

// Builder accumulates prompt sections.
type Builder struct {
	sections []string
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{sections: []string{}}
}

// Add appends section unless it is blank.
func (b *Builder) Add(section string) *Builder {
	if strings.TrimSpace(section) != "" {
		b.sections = append(b.sections, section)
	}
	return b
}

// AddContext appends the profile, project and platform sections that have content.
func (b *Builder) AddContext(profile *types.ProfileContext, project *types.ProjectContext, platform *types.PlatformContext) *Builder {
	return b.Add(ProfileSection(profile)).
		Add(ProjectSection(project)).
		Add(PlatformSection(platform))
}

// Build joins the sections.
func (b *Builder) Build() string {
	return strings.Join(b.sections, SectionSeparator)
}

// Compose builds the generation prompt for req.
func Compose(req types.GenerationRequest) string {
	return NewBuilder().
		AddContext(req.Profile, req.Project, req.Platform).
		Add(TaskSection(req.Goal, req.RawIdea)).
		Build()
}

// EstimateTokenCount approximates the token count of a composed prompt.
func EstimateTokenCount(text string) int {
	return token.EstimateTokenCount(text)
}

// ProfileSection renders the author profile, or "" when it has no content.
func ProfileSection(p *types.ProfileContext) string {
	if p == nil {
		return ""
	}

	var sb strings.Builder
	writeField(&sb, "Name", p.Name)
	writeField(&sb, "Bio", p.Bio)
	writeList(&sb, "Tone", p.ToneTags)
	writeList(&sb, "DO", p.DoRules)
	writeList(&sb, "DON'T", p.DontRules)

	return section("# AUTHOR PROFILE", sb.String())
}

// ProjectSection renders the project context, or "" when it has no content.
func ProjectSection(p *types.ProjectContext) string {
	if p == nil {
		return ""
	}

	var sb strings.Builder
	writeField(&sb, "Project", p.Name)
	writeField(&sb, "Description", p.Description)
	writeField(&sb, "Audience", p.Audience)
	writeList(&sb, "Key messages", p.KeyMessages)

	return section("# PROJECT CONTEXT", sb.String())
}

// PlatformSection renders the target platform, or "" when it has no content.
// The character limit line only appears when MaxLength is positive.
func PlatformSection(p *types.PlatformContext) string {
	if p == nil {
		return ""
	}

	var sb strings.Builder
	writeField(&sb, "Platform", p.Name)
	writeField(&sb, "Style guidelines", p.StyleGuidelines)
	if p.MaxLength > 0 {
		fmt.Fprintf(&sb, "Character limit: the post MUST NOT exceed %d characters.\n", p.MaxLength)
	}

	return section("# PLATFORM", sb.String())
}

// TaskSection renders the mandatory generation task. The raw idea is
// embedded verbatim.
func TaskSection(goal, rawIdea string) string {
	var sb strings.Builder
	sb.WriteString("# TASK\n\n")
	if g := strings.TrimSpace(goal); g != "" {
		fmt.Fprintf(&sb, "Goal: %s\n\n", g)
	}
	sb.WriteString("Raw idea:\n")
	sb.WriteString(rawIdea)
	sb.WriteString("\n\n")
	sb.WriteString(taskInstructions)
	return sb.String()
}

func section(heading, body string) string {
	body = strings.TrimRight(body, "\n")
	if body == "" {
		return ""
	}
	return heading + "\n\n" + body
}

func writeField(sb *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "%s: %s\n", label, value)
}

func writeList(sb *strings.Builder, label string, items []string) {
	var kept []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			kept = append(kept, item)
		}
	}
	if len(kept) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s:\n", label)
	for _, item := range kept {
		fmt.Fprintf(sb, "- %s\n", item)
	}
}

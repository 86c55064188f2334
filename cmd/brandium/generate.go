package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/app"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/format"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/prompt"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/storage"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/token"
	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate [idea]",
	Short: "Turn a raw idea into a post",
	RunE:  runGenerateCmd,
}

func runGenerateCmd(cmd *cobra.Command, args []string) error {
	briefPath, _ := cmd.Flags().GetString("brief")
	goal, _ := cmd.Flags().GetString("goal")
	variants, _ := cmd.Flags().GetInt("variants")
	plain, _ := cmd.Flags().GetBool("plain")
	outPath, _ := cmd.Flags().GetString("out")
	history, _ := cmd.Flags().GetBool("history")

	idea, err := ideaFromArgs(args, "What do you want to post about?")
	if err != nil {
		return err
	}
	brief, err := loadBrief(briefPath)
	if err != nil {
		return err
	}

	application, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := cmd.Context()
	orch, err := application.Orchestrator(ctx)
	if err != nil {
		return err
	}

	req := types.GenerationRequest{
		RawIdea:  idea,
		Goal:     goal,
		Profile:  brief.Profile,
		Project:  brief.Project,
		Platform: brief.Platform,
	}

	var results []types.GenerationResult
	if variants > 1 {
		results, err = orch.GenerateVariants(ctx, req, variants)
	} else {
		var result *types.GenerationResult
		result, err = orch.Generate(ctx, req)
		if result != nil {
			results = []types.GenerationResult{*result}
		}
	}
	if err != nil {
		return err
	}

	var texts []string
	for i := range results {
		if plain {
			results[i].Text = format.PlainText(results[i].Text)
		}
		texts = append(texts, results[i].Text)

		label := "Post"
		if len(results) > 1 {
			label = fmt.Sprintf("Variant %d", i+1)
		}
		printPost(label, results[i].Text)
		printUsage(&results[i])
		warnLength(brief.Platform, results[i].Text)
	}

	if history {
		recordHistory(ctx, application, "generate", idea, results)
	}

	if outPath != "" {
		if err := storage.WriteFileAtomic(outPath, []byte(strings.Join(texts, "\n\n---\n\n")+"\n"), 0644); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Saved to " + outPath))
	}
	return nil
}

// warnLength flags posts the backend made longer than the platform allows.
func warnLength(platform *types.PlatformContext, text string) {
	if platform == nil || platform.MaxLength <= 0 {
		return
	}
	if n := len([]rune(text)); n > platform.MaxLength {
		fmt.Println(warnStyle.Render(fmt.Sprintf("Warning: %d characters, %s allows %d.", n, platform.Name, platform.MaxLength)))
	}
}

// recordHistory stores results; failures are logged and never fail the command.
func recordHistory(ctx context.Context, application *app.App, kind, idea string, results []types.GenerationResult) {
	store, err := application.Store()
	if err != nil {
		application.Log.Warn("history unavailable", "error", err)
		return
	}
	for _, r := range results {
		if _, err := store.SaveGeneration(ctx, kind, idea, r); err != nil {
			application.Log.Warn("failed to record generation", "error", err)
			return
		}
	}
}

var iterateCmd = &cobra.Command{
	Use:   "iterate",
	Short: "Revise a generated post",
	Long: `Revise a post with one of the intents:
  shorter, stronger_hook, more_personal, add_data, simplify, custom

The custom intent requires --feedback.`,
	RunE: runIterateCmd,
}

func runIterateCmd(cmd *cobra.Command, args []string) error {
	postPath, _ := cmd.Flags().GetString("post")
	intent, _ := cmd.Flags().GetString("intent")
	feedback, _ := cmd.Flags().GetString("feedback")
	briefPath, _ := cmd.Flags().GetString("brief")
	plain, _ := cmd.Flags().GetBool("plain")

	previous, err := readInput(postPath)
	if err != nil {
		return err
	}
	brief, err := loadBrief(briefPath)
	if err != nil {
		return err
	}

	req := types.IterationRequest{
		PreviousPost: previous,
		Intent:       types.IterationIntent(intent),
		Feedback:     feedback,
		Profile:      brief.Profile,
		Project:      brief.Project,
		Platform:     brief.Platform,
	}
	if err := req.Validate(); err != nil {
		return err
	}

	application, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := cmd.Context()
	orch, err := application.Orchestrator(ctx)
	if err != nil {
		return err
	}

	result, err := orch.Iterate(ctx, req)
	if err != nil {
		return err
	}
	if plain {
		result.Text = format.PlainText(result.Text)
	}

	printPost("Revised post ("+intent+")", result.Text)
	printUsage(result)
	warnLength(brief.Platform, result.Text)
	return nil
}

var hooksCmd = &cobra.Command{
	Use:   "hooks [idea]",
	Short: "Suggest opening lines for an idea",
	RunE:  runHooksCmd,
}

func runHooksCmd(cmd *cobra.Command, args []string) error {
	briefPath, _ := cmd.Flags().GetString("brief")
	goal, _ := cmd.Flags().GetString("goal")
	count, _ := cmd.Flags().GetInt("count")

	idea, err := ideaFromArgs(args, "What is the post about?")
	if err != nil {
		return err
	}
	brief, err := loadBrief(briefPath)
	if err != nil {
		return err
	}

	application, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := cmd.Context()
	orch, err := application.Orchestrator(ctx)
	if err != nil {
		return err
	}

	hooks, err := orch.GenerateHooks(ctx, types.HookRequest{
		RawIdea:  idea,
		Goal:     goal,
		Count:    count,
		Profile:  brief.Profile,
		Project:  brief.Project,
		Platform: brief.Platform,
	})
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Hooks"))
	for i, h := range hooks {
		fmt.Printf("%d. %s\n", i+1, h.Text)
		fmt.Println(mutedStyle.Render(fmt.Sprintf("   %s · engagement %d/10", h.Type, h.EstimatedEngagement)))
	}
	return nil
}

var promptCmd = &cobra.Command{
	Use:   "prompt [idea]",
	Short: "Show the prompt a generation would send, without calling a backend",
	RunE:  runPromptCmd,
}

func runPromptCmd(cmd *cobra.Command, args []string) error {
	briefPath, _ := cmd.Flags().GetString("brief")
	goal, _ := cmd.Flags().GetString("goal")
	model, _ := cmd.Flags().GetString("model")
	encoding, _ := cmd.Flags().GetString("encoding")

	idea, err := ideaFromArgs(args, "What do you want to post about?")
	if err != nil {
		return err
	}
	brief, err := loadBrief(briefPath)
	if err != nil {
		return err
	}

	req := types.GenerationRequest{
		RawIdea:  idea,
		Goal:     goal,
		Profile:  brief.Profile,
		Project:  brief.Project,
		Platform: brief.Platform,
	}
	if err := req.Validate(); err != nil {
		return err
	}

	application, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	text := prompt.Compose(req)
	fmt.Println(text)
	fmt.Println()

	estimate := prompt.EstimateTokenCount(text)
	fmt.Println(mutedStyle.Render(fmt.Sprintf("Estimated tokens (rate limit): %d", estimate)))

	counter, err := token.NewCounter(encoding)
	if err != nil {
		fmt.Fprintln(os.Stderr, warnStyle.Render("tiktoken unavailable: "+err.Error()))
		return nil
	}
	count := counter.Count(text)
	budget := token.NewBudget(model, count, application.Settings().Generation.MaxTokens)
	fmt.Println(mutedStyle.Render(fmt.Sprintf("Counted tokens (%s): %d", counter.Encoding(), count)))
	fmt.Println(mutedStyle.Render(fmt.Sprintf("Context %s: %d of %d left after a %d-token completion",
		model, budget.Remaining(), budget.ContextLimit, budget.CompletionTokens)))
	if !budget.Fits() {
		fmt.Println(warnStyle.Render("The prompt does not fit the model's context window."))
	}
	return nil
}

func init() {
	generateCmd.Flags().StringP("brief", "b", "", "YAML file with profile, project and platform")
	generateCmd.Flags().StringP("goal", "g", "", "What the post should achieve")
	generateCmd.Flags().IntP("variants", "n", 1, "Number of variants to generate (1-5)")
	generateCmd.Flags().Bool("plain", false, "Strip markdown from the result")
	generateCmd.Flags().StringP("out", "o", "", "Also write the post to this file")
	generateCmd.Flags().Bool("history", true, "Record the result in the local history")

	iterateCmd.Flags().String("post", "-", "File with the post to revise ('-' for stdin)")
	iterateCmd.Flags().StringP("intent", "i", "", "Revision intent")
	iterateCmd.Flags().StringP("feedback", "f", "", "Free-form feedback for the custom intent")
	iterateCmd.Flags().StringP("brief", "b", "", "YAML file with profile, project and platform")
	iterateCmd.Flags().Bool("plain", false, "Strip markdown from the result")
	_ = iterateCmd.MarkFlagRequired("intent")

	hooksCmd.Flags().StringP("brief", "b", "", "YAML file with profile, project and platform")
	hooksCmd.Flags().StringP("goal", "g", "", "What the post should achieve")
	hooksCmd.Flags().IntP("count", "n", types.DefaultHookCount, "Number of hooks (1-10)")

	promptCmd.Flags().StringP("brief", "b", "", "YAML file with profile, project and platform")
	promptCmd.Flags().StringP("goal", "g", "", "What the post should achieve")
	promptCmd.Flags().String("model", "gpt-4o-mini", "Model whose context window to check")
	promptCmd.Flags().String("encoding", "cl100k_base", "tiktoken encoding to count with")
}

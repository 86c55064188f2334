// Package main is the entry point for brandium.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/app"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/llm"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/ratelimit"
	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var version = "0.1.0"

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	postStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "brandium",
	Short: "Write social posts in your own voice with AI assistance",
	Long: `Brandium turns raw ideas into platform-ready posts. It composes a prompt
from your profile, project and platform, calls the configured LLM backend
under a rate limit, and can learn your style from posts you published.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// newApp builds the application from the persistent flags.
func newApp(cmd *cobra.Command) (*app.App, error) {
	configPath, _ := cmd.Flags().GetString("config")
	provider, _ := cmd.Flags().GetString("provider")

	application, err := app.New(app.WithConfigPath(configPath), app.WithProvider(provider))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}
	return application, nil
}

// describeError turns the errors callers can act on into a short hint.
func describeError(err error) string {
	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) {
		return fmt.Sprintf("Rate limit reached. Retry in %ds.", exceeded.RetryAfterSeconds())
	}

	var backend *llm.BackendError
	if errors.As(err, &backend) {
		switch {
		case errors.Is(err, llm.ErrInvalidAPIKey):
			return fmt.Sprintf("%s rejected the API key. Check providers.%s.api_key in your config.", backend.Provider, backend.Provider)
		case backend.Retriable:
			return fmt.Sprintf("%v (temporary, try again)", err)
		}
	}
	return err.Error()
}

// readInput reads a file, or stdin when path is "-".
func readInput(path string) (string, error) {
	if path == "-" {
		return readFromStdin()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// readFromStdin reads all content from stdin.
func readFromStdin() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	var builder strings.Builder

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				builder.WriteString(line)
				break
			}
			return "", fmt.Errorf("error reading stdin: %w", err)
		}
		builder.WriteString(line)
	}

	return strings.TrimSpace(builder.String()), nil
}

// loadBrief reads the optional profile, project and platform contexts.
func loadBrief(path string) (*types.Brief, error) {
	if path == "" {
		return &types.Brief{}, nil
	}
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}

	var brief types.Brief
	if err := yaml.Unmarshal([]byte(data), &brief); err != nil {
		return nil, fmt.Errorf("failed to parse brief %s: %w", path, err)
	}
	return &brief, nil
}

// ideaFromArgs joins the positional arguments, or asks for the idea
// interactively when there are none.
func ideaFromArgs(args []string, title string) (string, error) {
	if idea := strings.TrimSpace(strings.Join(args, " ")); idea != "" {
		return idea, nil
	}

	var idea string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title(title).
				Description("A sentence or a few notes is enough.").
				CharLimit(4000).
				Value(&idea).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("the idea cannot be empty")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(idea), nil
}

func printPost(label, text string) {
	fmt.Println(titleStyle.Render(label))
	fmt.Println(postStyle.Render(text))
}

func printUsage(result *types.GenerationResult) {
	fmt.Println(mutedStyle.Render(fmt.Sprintf("model %s · %d prompt + %d completion tokens",
		result.Model, result.Usage.PromptTokens, result.Usage.CompletionTokens)))
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ~/.config/brandium/config.yaml)")
	rootCmd.PersistentFlags().StringP("provider", "p", "", "LLM provider to use: openai, gemini or local")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(iterateCmd)
	rootCmd.AddCommand(hooksCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(postsCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

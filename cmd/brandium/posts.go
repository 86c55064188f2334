package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/analysis"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/format"
	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Learn your writing style from published posts",
	Long: `Analyze published posts and suggest tone tags and do/don't rules.

Posts come from --posts (a YAML list, a markdown file or a directory of
markdown files) or, without it, from the posts imported with 'brandium posts
import'. With --profile and --merge the suggestions are merged into the
profile file.`,
	RunE: runAnalyzeCmd,
}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	postsPath, _ := cmd.Flags().GetString("posts")
	profilePath, _ := cmd.Flags().GetString("profile")
	merge, _ := cmd.Flags().GetBool("merge")

	application, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := cmd.Context()

	var posts []types.HistoricalPost
	if postsPath != "" {
		posts, err = loadPosts(postsPath)
	} else {
		store, serr := application.Store()
		if serr != nil {
			return serr
		}
		posts, err = store.ListPosts(ctx, analysis.MaxPromptPosts)
	}
	if err != nil {
		return err
	}

	orch, err := application.Orchestrator(ctx)
	if err != nil {
		return err
	}
	result, err := orch.AnalyzeStyle(ctx, posts)
	if err != nil {
		return err
	}

	printAnalysis(result, len(posts))

	if profilePath == "" {
		return nil
	}

	profile := &types.ProfileContext{}
	if data, err := os.ReadFile(profilePath); err == nil {
		if err := yaml.Unmarshal(data, profile); err != nil {
			return fmt.Errorf("failed to parse profile %s: %w", profilePath, err)
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	merged := analysis.ApplyToProfile(profile, result)
	if !merge {
		fmt.Println()
		fmt.Println(mutedStyle.Render("Run again with --merge to write these suggestions into " + profilePath))
		return nil
	}

	data, err := yaml.Marshal(merged)
	if err != nil {
		return err
	}
	if err := os.WriteFile(profilePath, data, 0644); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("Updated " + profilePath))
	return nil
}

func printAnalysis(result *types.StyleAnalysisResult, postCount int) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("Style analysis (%d posts, confidence %.2f)", postCount, result.Confidence)))
	fmt.Println("Tone:", strings.Join(result.ToneTags, ", "))

	fmt.Println("Do:")
	for _, r := range result.DoRules {
		fmt.Println("  - " + r)
	}
	fmt.Println("Don't:")
	for _, r := range result.DontRules {
		fmt.Println("  - " + r)
	}

	in := result.StyleInsights
	fmt.Println(mutedStyle.Render(fmt.Sprintf("length %s · emoji %s · hashtags %s · questions %s · calls to action %s",
		in.AverageLength, in.EmojiUsage, in.HashtagUsage, in.QuestionUsage, in.CallToActionUsage)))
}

// loadPosts reads posts from a YAML list, a markdown file, or every markdown
// file of a directory.
func loadPosts(path string) ([]types.HistoricalPost, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		var posts []types.HistoricalPost
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".md") {
				continue
			}
			post, err := loadMarkdownPost(filepath.Join(path, e.Name()))
			if err != nil {
				return nil, err
			}
			posts = append(posts, post)
		}
		return posts, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		post, err := loadMarkdownPost(path)
		if err != nil {
			return nil, err
		}
		return []types.HistoricalPost{post}, nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var posts []types.HistoricalPost
		if err := yaml.Unmarshal(data, &posts); err != nil {
			return nil, fmt.Errorf("failed to parse posts %s: %w", path, err)
		}
		return posts, nil
	}
}

func loadMarkdownPost(path string) (types.HistoricalPost, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.HistoricalPost{}, err
	}
	post, err := format.ParseMarkdownPost(string(data))
	if err != nil {
		return types.HistoricalPost{}, fmt.Errorf("%s: %w", path, err)
	}
	return post, nil
}

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Manage the published posts used for style analysis",
}

var postsImportCmd = &cobra.Command{
	Use:   "import <file|dir>...",
	Short: "Import published posts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPostsImportCmd,
}

func runPostsImportCmd(cmd *cobra.Command, args []string) error {
	var posts []types.HistoricalPost
	for _, path := range args {
		loaded, err := loadPosts(path)
		if err != nil {
			return err
		}
		posts = append(posts, loaded...)
	}

	application, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	store, err := application.Store()
	if err != nil {
		return err
	}
	n, err := store.SavePosts(cmd.Context(), posts)
	if err != nil {
		return err
	}

	total, err := store.CountPosts(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Imported %d posts (%d stored).", n, total)))
	if total < analysis.MinPosts {
		fmt.Println(mutedStyle.Render(fmt.Sprintf("Style analysis needs at least %d posts.", analysis.MinPosts)))
	}
	return nil
}

var postsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported posts, newest first",
	RunE:  runPostsListCmd,
}

func runPostsListCmd(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	application, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	store, err := application.Store()
	if err != nil {
		return err
	}
	posts, err := store.ListPosts(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if len(posts) == 0 {
		fmt.Println("No posts imported. Run 'brandium posts import <file>'.")
		return nil
	}
	for _, p := range posts {
		date := "undated"
		if p.PublishedAt != nil {
			date = p.PublishedAt.Format("2006-01-02")
		}
		fmt.Printf("%s  %s\n", mutedStyle.Render(date), truncate(p.Content, 70))
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	analyzeCmd.Flags().String("posts", "", "YAML list, markdown file or directory of posts (default: imported posts)")
	analyzeCmd.Flags().String("profile", "", "Profile YAML file to merge suggestions into")
	analyzeCmd.Flags().Bool("merge", false, "Write merged suggestions to --profile")

	postsListCmd.Flags().IntP("limit", "n", 20, "Maximum posts to list (0 for all)")

	postsCmd.AddCommand(postsImportCmd)
	postsCmd.AddCommand(postsListCmd)
}

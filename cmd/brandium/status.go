package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the remaining rate limit headroom",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		limiter, err := application.Limiter(cmd.Context())
		if err != nil {
			return err
		}
		st, err := limiter.Status(cmd.Context())
		if err != nil {
			return err
		}

		rl := application.Settings().RateLimit
		fmt.Println(titleStyle.Render("Rate limit (" + rl.Backend + ")"))
		fmt.Printf("Requests: %d of %d left\n", st.RequestsRemaining, rl.MaxRequests)
		fmt.Printf("Tokens:   %d of %d left\n", st.TokensRemaining, rl.MaxTokens)
		fmt.Printf("Window resets in %ds\n", st.WindowResetInSeconds())
		if rl.Backend == "memory" {
			fmt.Println(mutedStyle.Render("The memory backend only counts calls made by this process."))
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently generated posts",
	RunE: func(cmd *cobra.Command, args []string) error {
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
		records, err := store.RecentGenerations(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("Nothing generated yet.")
			return nil
		}
		for _, r := range records {
			fmt.Println(titleStyle.Render(fmt.Sprintf("#%d %s", r.ID, r.CreatedAt.Format("2006-01-02 15:04"))) +
				" " + mutedStyle.Render(truncate(r.RawIdea, 50)))
			fmt.Println(truncate(r.Result.Text, 100))
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the configuration file path and effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		cfg := application.Settings()
		fmt.Println(titleStyle.Render("Configuration"))
		fmt.Println("File:     ", application.Config.Path())
		fmt.Println("Database: ", cfg.DatabasePath)
		fmt.Println("Provider: ", application.ProviderName())
		fmt.Println()

		names := make([]string, 0, len(cfg.Providers))
		for name := range cfg.Providers {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println("Configured providers:")
		if len(names) == 0 {
			fmt.Println("  No providers configured.")
		}
		for _, name := range names {
			p := cfg.Providers[name]
			fmt.Printf("  %s\n", name)
			if p.APIKey != "" {
				fmt.Printf("    API Key: %s\n", maskAPIKey(p.APIKey))
			}
			if p.DefaultModel != "" {
				fmt.Printf("    Model: %s\n", p.DefaultModel)
			}
			if p.BaseURL != "" {
				fmt.Printf("    Base URL: %s\n", p.BaseURL)
			}
		}
		fmt.Println()

		g := cfg.Generation
		fmt.Printf("Generation: max_tokens=%d temperature=%.2f hooks_temperature=%.2f\n", g.MaxTokens, g.Temperature, g.HooksTemperature)
		fmt.Printf("Analysis:   max_tokens=%d temperature=%.2f\n", g.AnalysisMaxTokens, g.AnalysisTemperature)
		rl := cfg.RateLimit
		fmt.Printf("Rate limit: %d requests, %d tokens per %s (%s)\n", rl.MaxRequests, rl.MaxTokens, rl.Window, rl.Backend)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 10, "Number of entries to show")
}

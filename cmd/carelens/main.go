package main

import (
	"context"
	"fmt"
	"os"

	"CareLens/internal/config"
	gs "CareLens/internal/geminiservice"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	version = "v0.1.0" // Overwritten at build time

	outputFormat string
	verbose      bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "carelens",
		Short: "AI-assisted health information from photos, videos and reports",
		Long: `carelens sends a photo, video or PDF report to Gemini and prints a
risk-scored, non-diagnostic assessment. It can continue with follow-up
questions and look up nearby care. It never replaces a doctor.`,
		SilenceUsage: true,
	}

	// Disable automatic 'completion' command added by cobra
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "human", "Output format (human, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(
		newAssessCmd(),
		newPlacesCmd(),
		newServeCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("carelens version %s\n", version)
		},
	}
}

// setup loads the config and returns a ready client and a context carrying the logger.
func setup(parent context.Context) (*config.Config, *gs.Client, context.Context, error) {
	cfg := config.Load()
	cfg.ConfigureLogger()
	if !verbose {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	client := gs.NewClient(cfg.GeminiOptions())
	if !client.Configured() {
		return nil, nil, nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	return cfg, client, log.Logger.WithContext(parent), nil
}

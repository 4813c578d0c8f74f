package main

import (
	"encoding/json"
	"fmt"
	"io"

	"docqa/internal/app"
	"docqa/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFile string
	json    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "docqa",
		Short:         "Ask questions about your documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file to load before reading DOCQA_* settings")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print results as JSON")

	cmd.AddCommand(
		newIngestCmd(opts),
		newAskCmd(opts),
		newHistoryCmd(opts),
		newClearCmd(opts),
	)
	return cmd
}

// openApp loads configuration and connects the backends without the
// workflow engine; the CLI always ingests in-process.
func openApp(cmd *cobra.Command, opts *rootOptions) (*app.App, error) {
	_ = godotenv.Load(opts.envFile)
	cfg := config.Load()
	app.SetupLogging(cfg.LogLevel)
	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing docqa: %w", err)
	}
	return a, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

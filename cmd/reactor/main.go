// Package main provides the CLI entry point for the reactor agent
// orchestrator: a Reason-Act loop over an LLM function-calling interface,
// exposed over HTTP as /chat and /stream (SSE).
//
// Start the server:
//
//	reactor serve --config reactor.yaml
//
// Configuration can be provided via environment variables referenced from
// the YAML file with ${VAR} syntax, e.g. ANTHROPIC_API_KEY, OPENAI_API_KEY.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "reactor",
		Short:        "reactor - conversational agent orchestrator",
		Long:         `reactor runs a Reason-Act loop over an LLM function-calling interface, with pooled multi-turn Agent-Tools, approval gating and scheduled triggers.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd(), buildTokenCmd())
	return rootCmd
}

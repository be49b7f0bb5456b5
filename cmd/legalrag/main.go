// Command legalrag answers legal questions from the command line or over
// HTTP, and seeds the local knowledge graph and chunk index.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	legalrag "github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph"
)

var (
	configPath string
	logLevel   string
	jsonLogs   bool

	rootCmd = &cobra.Command{
		Use:   "legalrag",
		Short: "Graph-constrained retrieval and answering over Indian statutes and case law",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel, jsonLogs)
		},
		SilenceUsage: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	level := os.Getenv("LEGALRAG_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("LEGALRAG_CONFIG"), "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", level, "debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "log as JSON instead of text")

	rootCmd.AddCommand(serveCmd, askCmd, statusCmd, seedCmd)
}

// setupLogging installs the default slog logger on stderr so stdout stays
// clean for command output.
func setupLogging(level string, asJSON bool) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if asJSON {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// openEngine loads configuration and builds an engine.
func openEngine() (legalrag.Engine, legalrag.Config, error) {
	cfg, err := legalrag.LoadConfig(configPath)
	if err != nil {
		return nil, cfg, err
	}
	e, err := legalrag.New(cfg)
	if err != nil {
		return nil, cfg, fmt.Errorf("creating engine: %w", err)
	}
	return e, cfg, nil
}

// Package main implements the docqa CLI, which runs the document pipeline
// locally against the configured data directory, without MySQL or a queue.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docqa/internal/bootstrap"
	"docqa/internal/config"
	"docqa/internal/logging"
)

var (
	configPath string
	logLevel   string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ingest documents and ask questions grounded in them",
	Long: `docqa extracts text from PDFs and images (OCR when needed), indexes it,
and answers questions strictly from the indexed content.

It shares the data directory with the HTTP server, so documents ingested
here are visible to the server after a restart and vice versa.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $CONFIG_FILE or configs/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(textCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(chunksCmd)
}

// openEngine loads config and builds the pipeline. requireLLM is false for
// commands that never reach the language model.
func openEngine(requireLLM bool) (*bootstrap.Engine, error) {
	if configPath != "" {
		if err := os.Setenv("CONFIG_FILE", configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	if requireLLM {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	logger, err := logging.New(logLevel, "console")
	if err != nil {
		return nil, err
	}
	engine, err := bootstrap.NewEngine(cfg, nil, logger.With(zap.String("component", "cli")))
	if err != nil {
		return nil, err
	}
	return engine, nil
}

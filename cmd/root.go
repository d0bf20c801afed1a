package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"repoatlas/internal/config"
	"repoatlas/internal/logging"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	flagConfig    string
	flagDataDir   string
	flagLogLevel  string
	flagLogFormat string
	flagOllama    string
	flagModel     string
	flagChatModel string
)

// Set by the root command before any subcommand runs.
var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "repoatlas",
	Short:         "Code repository knowledge graph and semantic index",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := config.New()
		flags := cmd.Root().PersistentFlags()
		bindings := map[string]string{
			"data_dir":             "data-dir",
			"log.level":            "log-level",
			"log.format":           "log-format",
			"embedding.ollama_url": "ollama",
			"llm.ollama_url":       "ollama",
			"embedding.model":      "model",
			"llm.model":            "chat-model",
		}
		for key, name := range bindings {
			if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
				return err
			}
		}

		c, err := config.Load(v, flagConfig)
		if err != nil {
			return err
		}
		cfg = c
		logger = logging.New(os.Stderr, logging.LevelFromString(cfg.Log.Level), logging.ParseFormat(cfg.Log.Format))
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	// Empty flag defaults let config files and the environment supply the
	// value unless the flag is given.
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default ./repoatlas.yaml if present)")
	pf.StringVar(&flagDataDir, "data-dir", "", "data directory for clones, metadata and vectors (default ./data)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (default info)")
	pf.StringVar(&flagLogFormat, "log-format", "", "log format: text or json (default text)")
	pf.StringVar(&flagOllama, "ollama", "", "ollama base URL (default http://localhost:11434)")
	pf.StringVar(&flagModel, "model", "", "embedding model (default nomic-embed-text)")
	pf.StringVar(&flagChatModel, "chat-model", "", "generative model for query translation (default qwen3:8b)")
}

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bobarin/narrator/internal/config"
	"github.com/bobarin/narrator/internal/logging"
)

// commandContext loads configuration and the logger once per invocation.
type commandContext struct {
	logLevel string
	cfg      *config.Config
	logger   *slog.Logger
}

func (c *commandContext) ensure() (*config.Config, *slog.Logger, error) {
	if c.cfg != nil {
		return c.cfg, c.logger, nil
	}
	cfg, err := config.LoadLocal()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if c.logLevel != "" {
		level = c.logLevel
	}
	logger, err := logging.New(logging.Options{Level: level, Format: cfg.LogFormat})
	if err != nil {
		return nil, nil, err
	}
	c.cfg, c.logger = cfg, logger
	return cfg, logger, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "narrator",
		Short:         "Render narrated videos with word-highlighted captions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(newRenderCommand(ctx))
	rootCmd.AddCommand(newReflowCommand(ctx))
	rootCmd.AddCommand(newSectionsCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

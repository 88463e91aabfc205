package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ent0n29/coldcall/internal/config"
	"github.com/ent0n29/coldcall/internal/logging"
)

type rootOptions struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "coldcall",
		Short:         "Cold call trainer: role-play a sales call against a simulated prospect",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override APP_LOG_LEVEL (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override APP_LOG_FORMAT (json, console)")

	root.AddCommand(
		newServeCmd(opts),
		newLeadsCmd(),
		newReplayCmd(opts),
		newProbeCmd(),
	)
	return root
}

// loadRuntime resolves configuration and builds the process logger.
func (o *rootOptions) loadRuntime() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config error: %w", err)
	}
	if v := strings.TrimSpace(o.logLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(o.logFormat); v != "" {
		cfg.LogFormat = v
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

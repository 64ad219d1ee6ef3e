// Package cmd holds the portafolio command line: the HTTP server and offline tools
// around the statement parsers.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/username/portafolio/backend/src/config"
	"github.com/username/portafolio/backend/src/logger"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "portafolio",
		Short: "Broker statement ingestion backend",
		Long: `portafolio ingests broker account statements (Excel workbooks or HTML tables)
and turns their rows into normalized financial movements.

  portafolio serve                          # run the HTTP API
  portafolio parse movs.xlsx --broker IOL   # parse a statement offline
  portafolio brokers                        # list supported brokers and file types`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadConfig()
			level := config.Cfg.LogLevel
			if logLevel != "" {
				level = logLevel
			}
			format := "text"
			if cmd.Name() == "serve" {
				format = "json"
			}
			logger.Init(level, format)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(newServeCmd(), newParseCmd(), newBrokersCmd())
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

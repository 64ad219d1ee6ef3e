package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/username/portafolio/backend/src/config"
	"github.com/username/portafolio/backend/src/parsers"
	"github.com/username/portafolio/backend/src/parsers/iol"
)

// newDispatcher registers every statement parser this build ships.
func newDispatcher() *parsers.Dispatcher {
	return parsers.NewDispatcher(iol.NewParsers()...)
}

func newBrokersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "brokers",
		Short: "List the brokers and file extensions that can be parsed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDispatcher()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Parsers:    %s\n", strings.Join(d.SupportedBrokers(), ", "))
			fmt.Fprintf(out, "Extensions: %s\n", strings.Join(d.SupportedExtensions(), ", "))
			fmt.Fprintf(out, "Accepted at upload: %s\n", strings.Join(config.Cfg.SupportedBrokers, ", "))
			return nil
		},
	}
}

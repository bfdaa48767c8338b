// Package cmd implements the stract command-line front end: a thin
// cobra wrapper over the core packages (postings, search, dht, livendex),
// mirroring the shape of the teacher's cmd/amanmcp/cmd (one file per
// subcommand, root.go wiring persistent flags). This package is a
// caller of internal/..., never imported by it.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nonomal/stract/internal/config"
	"github.com/nonomal/stract/internal/logging"
)

var rootOpts struct {
	configPath string
	debug      bool
}

var (
	log     *slog.Logger
	logDone func()
)

// NewRootCmd builds the stract root command and registers every
// subcommand.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stract",
		Short:         "A distributed web search engine",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logDone != nil {
				logDone()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&rootOpts.configPath, "config", "", "path to a stract config YAML file")
	cmd.PersistentFlags().BoolVar(&rootOpts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDHTCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

func setupLogging() error {
	logCfg := logging.DefaultConfig()
	if rootOpts.debug {
		logCfg = logging.DebugConfig()
	}
	logCfg.WriteToStderr = true

	l, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	log = l
	logDone = cleanup
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(rootOpts.configPath)
}

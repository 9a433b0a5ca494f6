package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"mrms-pull/internal/config"
	"mrms-pull/internal/logger"
)

// version is overridden at build time with -ldflags "-X mrms-pull/cmd.version=...".
var version = "dev"

// options holds the values of the command-line flags.
type options struct {
	init       bool   // --init: write a default config instead of pulling
	configPath string // --cfg: path of the pull configuration
	debug      bool   // --debug: verbose logging
	statePath  string // --state: pull ledger location, empty disables it
	unpack     bool   // --unpack: extract pulled archives
}

// newRootCmd builds the `mrms-pull` command. There are no subcommands:
// --init switches between writing a default config and pulling.
func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "mrms-pull",
		Short: "Micro Release Management System pull client",
		Long: "Pull every file of a project release from an MRMS server into a local directory.\n" +
			"Run with --init first to write a config file to edit.",
		Version:      version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Set up logging (verbose if --debug is true)
			log := logger.New(cmd.OutOrStdout(), opts.debug)
			if opts.init {
				return runInit(cmd, opts, log)
			}
			return runPull(cmd, opts, log)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.init, "init", "i", false, "init a config file for pull releases")
	flags.StringVarP(&opts.configPath, "cfg", "c", config.DefaultPath, "config file path")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&opts.statePath, "state", "", "record pulled files in this ledger file")
	flags.BoolVar(&opts.unpack, "unpack", false, "extract pulled archives after a successful pull")

	return cmd
}

// Execute runs the root command. Cobra has already printed the error when
// Execute fails, so only the exit status is left to set.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

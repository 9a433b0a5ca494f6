package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mrms-pull/internal/config"
	"mrms-pull/internal/logger"
)

// runInit writes the default configuration to the --cfg path, replacing any
// existing file, and echoes what it wrote.
func runInit(cmd *cobra.Command, opts *options, log logger.Logger) error {
	log.Info("[INFO] init pull file,%s\n", opts.configPath)

	cfg, err := config.WriteDefault(opts.configPath)
	if err != nil {
		return err
	}

	data, err := config.Marshal(cfg, opts.configPath)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

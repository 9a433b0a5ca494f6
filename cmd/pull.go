package cmd

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mrms-pull/internal/config"
	"mrms-pull/internal/logger"
	"mrms-pull/internal/progress"
	"mrms-pull/internal/release"
	"mrms-pull/internal/state"
	"mrms-pull/internal/unpack"
)

// runPull loads the config and pulls the release it names.
// A missing or malformed config is reported and treated as nothing to do;
// any failure once the pull has started is returned.
func runPull(cmd *cobra.Command, opts *options, log logger.Logger) error {
	cfg, err := config.Load(opts.configPath)
	switch {
	case errors.Is(err, config.ErrNotFound):
		log.Warn("config file not found,%s\n", opts.configPath)
		log.Debug("[DEBUG] %v\n", err)
		return nil
	case errors.Is(err, config.ErrFormat):
		log.Warn("config file format error,%s\n", opts.configPath)
		log.Debug("[DEBUG] %v\n", err)
		return nil
	case err != nil:
		return err
	}

	clientOpts := []release.Option{
		release.WithLogger(log),
		release.WithProgress(progressSink(cmd.OutOrStdout())),
	}
	if opts.statePath != "" {
		ledger := state.Load(opts.statePath, log)
		if partial := ledger.Partial(); len(partial) > 0 {
			log.Warn("[WARN] %d file(s) left incomplete by an earlier pull will be downloaded again\n", len(partial))
		}
		clientOpts = append(clientOpts, release.WithRecorder(ledger))
	}

	res, err := release.New(cfg, clientOpts...).Pull(cmd.Context())
	if err != nil {
		return err
	}

	if opts.unpack {
		paths := make([]string, 0, len(res.Files))
		for _, f := range res.Files {
			paths = append(paths, f.Path)
		}
		if _, err := unpack.All(paths, log); err != nil {
			return err
		}
	}
	return nil
}

// progressSink draws a bar on terminals and plain lines everywhere else.
func progressSink(w io.Writer) progress.Sink {
	if f, ok := w.(*os.File); ok {
		return progress.Auto(f)
	}
	return progress.NewPlain(w)
}

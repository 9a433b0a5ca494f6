package release

import (
	"context"
	"fmt"
)

// Recorder is told about every download of a pull.
// state.Ledger is the implementation used by the CLI.
type Recorder interface {
	Begin(project, version, profile string)
	Completed(location, path string, size int64) error
	Failed(location, path string, size int64) error
}

// Result is what a pull produced.
type Result struct {
	Manifest Manifest
	Files    []Pulled
}

// Pull fetches the manifest once and then downloads every location in
// manifest order, one at a time. The first failure stops the pull; files
// after it are never requested.
func (c *Client) Pull(ctx context.Context) (Result, error) {
	c.log.Info("[INFO] pull releases project:%s, version:%s, profile:%s\n", c.cfg.Project, c.cfg.Version, c.cfg.Profile)

	manifest, err := c.FetchManifest(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Manifest: manifest, Files: make([]Pulled, 0, len(manifest))}

	if c.recorder != nil {
		c.recorder.Begin(c.cfg.Project, c.cfg.Version, c.cfg.Profile)
	}

	for _, location := range manifest {
		pulled, err := c.Download(ctx, location)
		if err != nil {
			if c.recorder != nil && pulled.created {
				if rerr := c.recorder.Failed(location, pulled.Path, pulled.Size); rerr != nil {
					c.log.Warn("[WARN] Failed to record partial download of %s: %v\n", location, rerr)
				}
			}
			return res, fmt.Errorf("pull %s: %w", location, err)
		}
		res.Files = append(res.Files, pulled)

		if c.recorder != nil {
			if err := c.recorder.Completed(location, pulled.Path, pulled.Size); err != nil {
				return res, err
			}
		}
	}

	c.log.Info("[INFO] pulled %d file(s) into %s\n", len(res.Files), c.cfg.Dir)
	return res, nil
}

package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path"
	"strings"
)

// ErrUnsafeLocation is returned for locations that would resolve outside the
// configured directory.
var ErrUnsafeLocation = errors.New("location escapes the target directory")

// Pulled describes one downloaded file.
type Pulled struct {
	Location string // location as listed in the manifest
	Path     string // local destination path
	Size     int64  // bytes written

	created bool // the destination file was opened (and possibly truncated)
}

// normalizeLocation converts backslash separators to forward slashes.
func normalizeLocation(location string) string {
	return strings.ReplaceAll(location, "\\", "/")
}

// LocalPath resolves where a manifest location is written: dir + "/" + the
// location with backslashes turned into forward slashes.
func LocalPath(dir, location string) string {
	return dir + "/" + normalizeLocation(location)
}

func checkLocation(location string) error {
	clean := path.Clean("/" + normalizeLocation(location))
	if clean == "/" {
		return fmt.Errorf("%w: %q", ErrUnsafeLocation, location)
	}
	rel := path.Clean(normalizeLocation(location))
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return fmt.Errorf("%w: %q", ErrUnsafeLocation, location)
	}
	return nil
}

// chunks yields successive reads from r. A read error other than io.EOF is
// yielded once and ends the sequence.
func chunks(r io.Reader, size int) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, size)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				if !yield(buf[:n], nil) {
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// Download fetches one manifest location into the configured directory.
// Parent directories are created as needed and an existing file is
// truncated. On failure the partially written file is left in place; the
// returned Pulled still reports how many bytes made it to disk.
func (c *Client) Download(ctx context.Context, location string) (Pulled, error) {
	cfg := c.cfg.Clone()
	pulled := Pulled{Location: location, Path: LocalPath(cfg.Dir, location)}

	c.log.Info("[INFO] downloading file:%s\n", location)
	if err := checkLocation(location); err != nil {
		return pulled, err
	}

	dir := path.Dir(pulled.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return pulled, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	req, err := newRequest(ctx, cfg, ActionPullFile, map[string]string{
		"location": EncodeLocation(location),
	})
	if err != nil {
		return pulled, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return pulled, fmt.Errorf("file request for %s: %w", location, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Warn("[WARN] Failed to close response body: %v\n", cerr)
		}
	}()
	if err := checkStatus(ActionPullFile, resp); err != nil {
		return pulled, err
	}

	// ContentLength is -1 when the header is absent or unparsable.
	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	c.log.Debug("[DEBUG] %s: content length %d\n", location, total)

	out, err := os.Create(pulled.Path)
	if err != nil {
		return pulled, fmt.Errorf("failed to create file %s: %w", pulled.Path, err)
	}
	pulled.created = true
	closed := false
	defer func() {
		if !closed {
			_ = out.Close()
		}
	}()

	c.progress.Start(location, total)
	defer c.progress.Finish()

	for chunk, err := range chunks(resp.Body, c.chunkSize) {
		if err != nil {
			return pulled, fmt.Errorf("failed reading %s: %w", location, err)
		}
		if _, err := out.Write(chunk); err != nil {
			return pulled, fmt.Errorf("failed writing %s: %w", pulled.Path, err)
		}
		pulled.Size += int64(len(chunk))
		c.progress.Add(len(chunk))
	}

	closed = true
	if err := out.Close(); err != nil {
		return pulled, fmt.Errorf("failed to close %s: %w", pulled.Path, err)
	}
	return pulled, nil
}

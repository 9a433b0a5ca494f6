package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrManifest is wrapped by errors caused by a malformed manifest body.
var ErrManifest = errors.New("malformed manifest")

// Manifest is the ordered list of file locations making up a release.
type Manifest []string

// FetchManifest issues the LIST request and decodes the JSON array of
// locations the server answers with.
func (c *Client) FetchManifest(ctx context.Context) (Manifest, error) {
	req, err := newRequest(ctx, c.cfg, ActionPullStart, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("manifest request to %s: %w", c.cfg.BaseURL(), err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Warn("[WARN] Failed to close manifest response body: %v\n", cerr)
		}
	}()

	if err := checkStatus(ActionPullStart, resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	// "null" decodes without error but is not an array.
	if m == nil {
		return nil, fmt.Errorf("%w: expected a JSON array of strings", ErrManifest)
	}

	c.log.Debug("[DEBUG] Manifest has %d location(s)\n", len(m))
	return m, nil
}

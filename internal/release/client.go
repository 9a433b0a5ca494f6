// Package release pulls the files of a project/version/profile release from
// an MRMS server. A pull is two phases: one LIST request for the manifest,
// then one FETCH request per manifest location, strictly in order.
package release

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"mrms-pull/internal/config"
	"mrms-pull/internal/logger"
	"mrms-pull/internal/progress"
)

// Action is the value of the "action" header and selects the request kind.
type Action string

const (
	// ActionPullStart asks for the manifest of the release (LIST).
	ActionPullStart Action = "pull-start"
	// ActionPullFile asks for the bytes of one manifest location (FETCH).
	ActionPullFile Action = "pull-file"
)

const defaultChunkSize = 32 * 1024

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Action Action
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed: HTTP status %s", e.Action, e.Status)
}

// Client talks to a single release server described by a config.Config.
type Client struct {
	cfg       config.Config
	http      *http.Client
	log       logger.Logger
	progress  progress.Sink
	recorder  Recorder
	chunkSize int
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the transport. The default is http.DefaultClient,
// which applies no timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets where diagnostics go.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithProgress sets the sink fed with per-file byte counts.
func WithProgress(p progress.Sink) Option {
	return func(c *Client) { c.progress = p }
}

// WithRecorder registers a Recorder notified after every download.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithChunkSize sets the read buffer used while streaming a file.
func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// New returns a Client for cfg.
func New(cfg config.Config, opts ...Option) *Client {
	c := &Client{
		cfg:       cfg,
		http:      http.DefaultClient,
		log:       logger.Discard,
		progress:  progress.Discard,
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newRequest builds the GET every request kind shares: the base URL plus the
// identifying headers, followed by any action specific headers.
func newRequest(ctx context.Context, cfg config.Config, action Action, extra map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("setting up %s request: %w", action, err)
	}
	// Header names are sent in lower case, as the server expects them.
	req.Header["action"] = []string{string(action)}
	req.Header["project"] = []string{cfg.Project}
	req.Header["version"] = []string{cfg.Version}
	req.Header["profile"] = []string{cfg.Profile}
	req.Header["auth"] = []string{cfg.Auth}
	for k, v := range extra {
		req.Header[k] = []string{v}
	}
	return req, nil
}

func checkStatus(action Action, resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Action: action, Code: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

// EncodeLocation percent-encodes a manifest location for the "location"
// header. Only A-Z, a-z, 0-9 and "-_.~" are left as is.
func EncodeLocation(location string) string {
	return strings.ReplaceAll(url.QueryEscape(location), "+", "%20")
}

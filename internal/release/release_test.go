package release

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"mrms-pull/internal/config"
)

// request is what the fake server saw.
type request struct {
	Action   string
	Location string
	Project  string
	Version  string
	Profile  string
	Auth     string
}

// fakeServer serves a manifest and a set of files keyed by the decoded
// location. failOn makes the server answer 500 for that location.
type fakeServer struct {
	manifest string
	files    map[string]string
	failOn   string
	truncate string // declare a longer Content-Length than the body for this location

	mu       sync.Mutex
	requests []request
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := request{
		Action:   r.Header.Get("action"),
		Location: r.Header.Get("location"),
		Project:  r.Header.Get("project"),
		Version:  r.Header.Get("version"),
		Profile:  r.Header.Get("profile"),
		Auth:     r.Header.Get("auth"),
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	switch req.Action {
	case string(ActionPullStart):
		fmt.Fprint(w, f.manifest)
	case string(ActionPullFile):
		loc := decode(req.Location)
		if loc == f.failOn {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		body, ok := f.files[loc]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if loc == f.truncate {
			w.Header().Set("Content-Length", strconv.Itoa(len(body)+100))
		}
		fmt.Fprint(w, body)
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
	}
}

func (f *fakeServer) fileRequests() []string {
	var out []string
	for _, r := range f.all() {
		if r.Action == string(ActionPullFile) {
			out = append(out, r.Location)
		}
	}
	return out
}

func (f *fakeServer) all() []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]request(nil), f.requests...)
}

func decode(s string) string {
	out, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return out
}

func newTestConfig(t *testing.T, srv *httptest.Server, dir string) config.Config {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.ParseUint(portStr, 10, 32)
	require.NoError(t, err)
	return config.Config{
		Server:  host,
		Port:    uint32(port),
		Version: "1.4.2",
		Dir:     dir,
		Project: "shop",
		Profile: "prod",
		Auth:    "s3cret",
	}
}

type recordingSink struct {
	starts   []string
	totals   []int64
	adds     []int
	finished int
}

func (s *recordingSink) Start(name string, total int64) {
	s.starts = append(s.starts, name)
	s.totals = append(s.totals, total)
}
func (s *recordingSink) Add(n int) { s.adds = append(s.adds, n) }
func (s *recordingSink) Finish()   { s.finished++ }

type fakeRecorder struct {
	began     []string
	completed []string
	failed    map[string]int64
}

func (r *fakeRecorder) Begin(project, version, profile string) {
	r.began = append(r.began, project+"/"+version+"/"+profile)
}
func (r *fakeRecorder) Completed(location, _ string, _ int64) error {
	r.completed = append(r.completed, location)
	return nil
}
func (r *fakeRecorder) Failed(location, _ string, size int64) error {
	if r.failed == nil {
		r.failed = map[string]int64{}
	}
	r.failed[location] = size
	return nil
}

func TestPullEndToEnd(t *testing.T) {
	fake := &fakeServer{
		manifest: `["releases/app.jar", "cfg/app.yml"]`,
		files: map[string]string{
			"releases/app.jar": "PK\x03\x04 jar bytes",
			"cfg/app.yml":      "server:\n  port: 8080\n",
		},
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "out")
	rec := &fakeRecorder{}
	client := New(newTestConfig(t, srv, out), WithRecorder(rec))

	res, err := client.Pull(context.Background())
	require.NoError(t, err)
	require.Equal(t, Manifest{"releases/app.jar", "cfg/app.yml"}, res.Manifest)
	require.Len(t, res.Files, 2)

	for loc, want := range fake.files {
		got, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(loc)))
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}
	require.Equal(t, []string{"releases%2Fapp.jar", "cfg%2Fapp.yml"}, fake.fileRequests())
	require.Equal(t, []string{"releases/app.jar", "cfg/app.yml"}, rec.completed)
	require.Equal(t, []string{"shop/1.4.2/prod"}, rec.began)

	// Every request carries the identifying headers.
	requests := fake.all()
	require.Len(t, requests, 3)
	require.Equal(t, string(ActionPullStart), requests[0].Action)
	for _, r := range requests {
		require.Equal(t, "shop", r.Project)
		require.Equal(t, "1.4.2", r.Version)
		require.Equal(t, "prod", r.Profile)
		require.Equal(t, "s3cret", r.Auth)
	}
}

func TestPullIssuesOneFetchPerLocationInOrder(t *testing.T) {
	fake := &fakeServer{
		manifest: `["z.txt", "a b.txt", "m/n.txt", "x+y.txt"]`,
		files: map[string]string{
			"z.txt": "z", "a b.txt": "ab", "m/n.txt": "mn", "x+y.txt": "xy",
		},
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client := New(newTestConfig(t, srv, t.TempDir()))
	_, err := client.Pull(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"z.txt", "a%20b.txt", "m%2Fn.txt", "x%2By.txt"}, fake.fileRequests())
}

func TestPullBackslashLocation(t *testing.T) {
	fake := &fakeServer{
		manifest: `["a\\b\\c.txt"]`,
		files:    map[string]string{`a\b\c.txt`: "hello"},
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	dir := t.TempDir()
	client := New(newTestConfig(t, srv, dir))
	res, err := client.Pull(context.Background())
	require.NoError(t, err)

	require.Equal(t, dir+"/a/b/c.txt", res.Files[0].Path)
	info, err := os.Stat(filepath.Join(dir, "a", "b"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
	got, err := os.ReadFile(filepath.Join(dir, "a", "b", "c.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	// The header carries the location as listed, percent-encoded.
	require.Equal(t, []string{"a%5Cb%5Cc.txt"}, fake.fileRequests())
}

func TestPullStopsAtFirstFailure(t *testing.T) {
	fake := &fakeServer{
		manifest: `["one.txt", "two.txt", "three.txt"]`,
		files:    map[string]string{"one.txt": "1", "two.txt": "2", "three.txt": "3"},
		failOn:   "two.txt",
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	dir := t.TempDir()
	client := New(newTestConfig(t, srv, dir))
	res, err := client.Pull(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusInternalServerError, statusErr.Code)
	require.Equal(t, []string{"one.txt", "two.txt"}, fake.fileRequests())
	require.Len(t, res.Files, 1)

	_, err = os.Stat(filepath.Join(dir, "three.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestPullMalformedManifest(t *testing.T) {
	for name, body := range map[string]string{
		"not json":   "<html>oops</html>",
		"object":     `{"files": []}`,
		"numbers":    `[1, 2]`,
		"null":       `null`,
		"empty body": ``,
		"truncated":  `["a.txt"`,
	} {
		t.Run(name, func(t *testing.T) {
			fake := &fakeServer{manifest: body}
			srv := httptest.NewServer(fake)
			defer srv.Close()

			client := New(newTestConfig(t, srv, t.TempDir()))
			_, err := client.Pull(context.Background())
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrManifest), "got %v", err)
			require.Empty(t, fake.fileRequests())
		})
	}
}

func TestPullEmptyManifest(t *testing.T) {
	fake := &fakeServer{manifest: `[]`}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	res, err := New(newTestConfig(t, srv, t.TempDir())).Pull(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Files)
	require.Empty(t, fake.fileRequests())
}

func TestPullNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := newTestConfig(t, srv, t.TempDir())
	srv.Close()

	_, err := New(cfg).Pull(context.Background())
	require.Error(t, err)
}

func TestPullManifestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(newTestConfig(t, srv, t.TempDir())).Pull(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, ActionPullStart, statusErr.Action)
	require.Equal(t, http.StatusForbidden, statusErr.Code)
}

func TestDownloadTruncatedStreamLeavesPartialFile(t *testing.T) {
	fake := &fakeServer{
		manifest: `["big.bin", "after.bin"]`,
		files:    map[string]string{"big.bin": "0123456789", "after.bin": "x"},
		truncate: "big.bin",
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	dir := t.TempDir()
	rec := &fakeRecorder{}
	client := New(newTestConfig(t, srv, dir), WithRecorder(rec))
	_, err := client.Pull(context.Background())
	require.Error(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "big.bin"))
	require.NoError(t, err)
	require.Equal(t, "0123456789", string(got))
	require.Equal(t, map[string]int64{"big.bin": 10}, rec.failed)
	require.Equal(t, []string{"big.bin"}, fake.fileRequests())
}

func TestDownloadDirectoryFailure(t *testing.T) {
	fake := &fakeServer{manifest: `["sub/a.txt"]`, files: map[string]string{"sub/a.txt": "a"}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	// Dir is a regular file, so its children cannot be created.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	rec := &fakeRecorder{}
	_, err := New(newTestConfig(t, srv, blocker), WithRecorder(rec)).Pull(context.Background())
	require.Error(t, err)
	require.Empty(t, fake.fileRequests())
	require.Empty(t, rec.failed)
}

func TestDownloadOverwritesExistingFile(t *testing.T) {
	fake := &fakeServer{manifest: `["a.txt"]`, files: map[string]string{"a.txt": "new"}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("old and longer"), 0644))

	_, err := New(newTestConfig(t, srv, dir)).Pull(context.Background())
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "new", string(got))
}

func TestDownloadReportsProgress(t *testing.T) {
	fake := &fakeServer{manifest: `["a.txt"]`, files: map[string]string{"a.txt": "0123456789"}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	sink := &recordingSink{}
	client := New(newTestConfig(t, srv, t.TempDir()), WithProgress(sink), WithChunkSize(4))
	pulled, err := client.Download(context.Background(), "a.txt")
	require.NoError(t, err)
	require.Equal(t, int64(10), pulled.Size)

	require.Equal(t, []string{"a.txt"}, sink.starts)
	require.Equal(t, []int64{10}, sink.totals)
	sum := 0
	for _, n := range sink.adds {
		sum += n
	}
	require.Equal(t, 10, sum)
	require.Greater(t, len(sink.adds), 1)
	require.Equal(t, 1, sink.finished)
}

func TestDownloadUnknownContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Flushing before writing forces a chunked response without Content-Length.
		w.(http.Flusher).Flush()
		fmt.Fprint(w, "streamed")
	}))
	defer srv.Close()

	sink := &recordingSink{}
	pulled, err := New(newTestConfig(t, srv, t.TempDir()), WithProgress(sink)).Download(context.Background(), "s.txt")
	require.NoError(t, err)
	require.Equal(t, int64(8), pulled.Size)
	require.Equal(t, []int64{0}, sink.totals)
}

func TestDownloadRejectsEscapingLocation(t *testing.T) {
	fake := &fakeServer{manifest: `["../evil.txt"]`, files: map[string]string{"../evil.txt": "x"}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := New(newTestConfig(t, srv, t.TempDir())).Pull(context.Background())
	require.ErrorIs(t, err, ErrUnsafeLocation)
	require.Empty(t, fake.fileRequests())
}

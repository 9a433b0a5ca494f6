package state

import (
	"encoding/json" // For JSON encoding and decoding of the ledger file
	"fmt"
	"os" // For file system operations like reading and writing files
	"time"

	"mrms-pull/internal/logger"
)

// File statuses recorded in the ledger.
const (
	StatusComplete = "complete" // fully written and closed
	StatusPartial  = "partial"  // download failed; the file on disk may be truncated
)

// FileState records what happened to one manifest location.
type FileState struct {
	Path     string    `json:"path"`      // Local destination path
	Size     int64     `json:"size"`      // Bytes written
	Status   string    `json:"status"`    // StatusComplete or StatusPartial
	PulledAt time.Time `json:"pulled_at"` // When the download finished or failed
}

// Ledger is the persisted record of the last pull.
// Files is keyed by the manifest location as sent by the server.
type Ledger struct {
	Project string               `json:"project"`
	Version string               `json:"version"`
	Profile string               `json:"profile"`
	Files   map[string]FileState `json:"files"`

	path string
	log  logger.Logger
	now  func() time.Time
}

// Load reads the ledger at path.
// If the file does not exist or cannot be parsed, it returns a new empty Ledger,
// so a damaged ledger never blocks a pull.
func Load(path string, log logger.Logger) *Ledger {
	l := &Ledger{path: path, log: log, now: time.Now}

	file, err := os.ReadFile(path)
	if err != nil {
		log.Debug("[DEBUG] No ledger at %s, starting fresh\n", path)
		l.Files = make(map[string]FileState)
		return l
	}
	if err := json.Unmarshal(file, l); err != nil {
		log.Warn("[WARN] Ignoring unreadable ledger %s: %v\n", path, err)
	}

	// Ensure the map is initialized if the JSON contained null for it
	if l.Files == nil {
		l.Files = make(map[string]FileState)
	}
	return l
}

// Begin resets the ledger for a new pull of the given release.
// Entries from a previous pull of a different release are dropped.
func (l *Ledger) Begin(project, version, profile string) {
	if l.Project != project || l.Version != version || l.Profile != profile {
		l.Files = make(map[string]FileState)
	}
	l.Project, l.Version, l.Profile = project, version, profile
}

// Completed records a finished download and saves the ledger.
func (l *Ledger) Completed(location, path string, size int64) error {
	l.Files[location] = FileState{Path: path, Size: size, Status: StatusComplete, PulledAt: l.now()}
	return l.Save()
}

// Failed records a download that stopped part way and saves the ledger.
func (l *Ledger) Failed(location, path string, size int64) error {
	l.Files[location] = FileState{Path: path, Size: size, Status: StatusPartial, PulledAt: l.now()}
	return l.Save()
}

// Partial lists the locations currently marked partial.
func (l *Ledger) Partial() []string {
	var out []string
	for loc, fs := range l.Files {
		if fs.Status == StatusPartial {
			out = append(out, loc)
		}
	}
	return out
}

// Save writes the ledger as indented JSON.
func (l *Ledger) Save() error {
	file, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	// Log debug info showing the full JSON being written (can be verbose)
	l.log.Debug("[DEBUG] Writing ledger to %s:\n%s\n", l.path, string(file))

	if err := os.WriteFile(l.path, file, 0644); err != nil {
		return fmt.Errorf("failed to write ledger %s: %w", l.path, err)
	}
	return nil
}

// Package oplog records mutating operations for traceability: which
// operation ran and which files it created, modified, or deleted. The
// engine emits the events; callers wrap them around each mutation.
package oplog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/config"
)

// Event kinds tracked per operation.
const (
	EventFileCreated  = "file_created"
	EventFileModified = "file_modified"
	EventFileDeleted  = "file_deleted"
)

// Event is one file mutation inside an operation.
type Event struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
	At   string `json:"at"`
}

// Record is one logged operation.
type Record struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	StartedAt string  `json:"started_at"`
	EndedAt   string  `json:"ended_at,omitempty"`
	Events    []Event `json:"events,omitempty"`
}

// Log is the audit interface the engine emits to.
type Log interface {
	StartOperation(kind string) (string, error)
	TrackFileCreated(id, path string) error
	TrackFileModified(id, path string) error
	TrackFileDeleted(id, path string) error
	EndOperation(id string) error
}

// FileLog implements Log as one JSON record per operation under
// .palace/operations/.
type FileLog struct {
	dir string
}

// NewFileLog creates a file-backed operations log for the vault.
func NewFileLog(vaultRoot string) *FileLog {
	return &FileLog{dir: filepath.Join(vaultRoot, config.PalaceDir, "operations")}
}

func (l *FileLog) recordPath(id string) string {
	return filepath.Join(l.dir, id+".json")
}

// StartOperation opens a new operation record and returns its ID.
func (l *FileLog) StartOperation(kind string) (string, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("oplog: creating directory: %w", err)
	}
	rec := Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := l.save(rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// TrackFileCreated records a file creation event.
func (l *FileLog) TrackFileCreated(id, path string) error {
	return l.track(id, EventFileCreated, path)
}

// TrackFileModified records a file modification event.
func (l *FileLog) TrackFileModified(id, path string) error {
	return l.track(id, EventFileModified, path)
}

// TrackFileDeleted records a file deletion event.
func (l *FileLog) TrackFileDeleted(id, path string) error {
	return l.track(id, EventFileDeleted, path)
}

// EndOperation stamps the operation as finished.
func (l *FileLog) EndOperation(id string) error {
	rec, err := l.Load(id)
	if err != nil {
		return err
	}
	rec.EndedAt = time.Now().UTC().Format(time.RFC3339)
	return l.save(rec)
}

func (l *FileLog) track(id, kind, path string) error {
	rec, err := l.Load(id)
	if err != nil {
		return err
	}
	rec.Events = append(rec.Events, Event{
		Kind: kind,
		Path: path,
		At:   time.Now().UTC().Format(time.RFC3339),
	})
	return l.save(rec)
}

// Load reads one operation record.
func (l *FileLog) Load(id string) (Record, error) {
	data, err := os.ReadFile(l.recordPath(id))
	if err != nil {
		return Record{}, fmt.Errorf("oplog: loading operation %s: %w", id, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("oplog: parsing operation %s: %w", id, err)
	}
	return rec, nil
}

// List returns all recorded operations sorted by start time.
func (l *FileLog) List() ([]Record, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("oplog: listing operations: %w", err)
	}
	var recs []Record
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		rec, err := l.Load(e.Name()[:len(e.Name())-len(".json")])
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].StartedAt < recs[j].StartedAt })
	return recs, nil
}

func (l *FileLog) save(rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("oplog: encoding operation %s: %w", rec.ID, err)
	}
	if err := os.WriteFile(l.recordPath(rec.ID), data, 0o644); err != nil {
		return fmt.Errorf("oplog: writing operation %s: %w", rec.ID, err)
	}
	return nil
}

// Nop is a Log that records nothing. Used for dry runs and tests.
type Nop struct{}

func (Nop) StartOperation(kind string) (string, error) { return "nop", nil }
func (Nop) TrackFileCreated(id, path string) error     { return nil }
func (Nop) TrackFileModified(id, path string) error    { return nil }
func (Nop) TrackFileDeleted(id, path string) error     { return nil }
func (Nop) EndOperation(id string) error               { return nil }

package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/syncer"
)

// ErrRecordNotFound is returned by Get for an unknown ID.
var ErrRecordNotFound = errors.New("history record not found")

// Journal stores run records in a directory. It is safe for concurrent use.
type Journal struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// DefaultDir is $XDG_STATE_HOME/manifestsync/history.
func DefaultDir() string {
	return filepath.Join(xdg.StateHome, "manifestsync", "history")
}

// New returns a journal rooted at dir. The directory is created on first write.
func New(dir string) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	return &Journal{dir: dir, now: time.Now}, nil
}

// Dir returns the journal directory.
func (j *Journal) Dir() string {
	return j.dir
}

// Log assigns an ID and timestamp to rec and persists it.
func (j *Journal) Log(rec Record) (*Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if rec.Operation == "" {
		rec.Operation = OpSync
	}
	rec.Timestamp = j.now().UTC()
	rec.ID = newID(rec.Operation, rec.Timestamp)
	if rec.Added == nil {
		rec.Added = []syncer.Addition{}
	}
	if rec.Removed == nil {
		rec.Removed = []string{}
	}

	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	if err := j.write(&rec); err != nil {
		return nil, fmt.Errorf("failed to write history record: %w", err)
	}
	return &rec, nil
}

func (j *Journal) write(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	path := filepath.Join(j.dir, rec.ID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// List returns records newest first. A limit of zero or less returns all.
// Unreadable files are skipped.
func (j *Journal) List(limit int) ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	records, err := j.readAll()
	if err != nil {
		return nil, err
	}

	slices.SortFunc(records, func(a, b Record) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Get returns the record with id.
func (j *Journal) Get(id string) (*Record, error) {
	if id == "" {
		return nil, errors.New("record ID cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	rec, err := j.read(id + ".json")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return nil, err
	}
	return rec, nil
}

// Cleanup removes records older than retentionDays and returns how many were removed.
func (j *Journal) Cleanup(retentionDays int) (int, error) {
	if retentionDays < 0 {
		return 0, fmt.Errorf("retention must not be negative: %d", retentionDays)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	records, err := j.readAll()
	if err != nil {
		return 0, err
	}

	cutoff := j.now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, rec := range records {
		if !rec.Timestamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(j.dir, rec.ID+".json")); err != nil {
			continue
		}
		removed++
	}
	return removed, nil
}

func (j *Journal) readAll() ([]Record, error) {
	files, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	records := []Record{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		rec, err := j.read(f.Name())
		if err != nil {
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (j *Journal) read(name string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(j.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// newID returns an ID like "sync-2024-06-15T10-30-00-1a2b3c4d5e6f".
func newID(op Operation, ts time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s-%s-%s", op, ts.Format("2006-01-02T15-04-05"), suffix)
}

package journal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/manifest"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/syncer"
)

func newJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(filepath.Join(t.TempDir(), "history"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return j
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") error = nil, want error")
	}
	if !strings.HasSuffix(DefaultDir(), filepath.Join("manifestsync", "history")) {
		t.Errorf("DefaultDir() = %q", DefaultDir())
	}
}

func TestJournal_LogAndGet(t *testing.T) {
	t.Parallel()
	j := newJournal(t)

	report := &syncer.Report{
		Task:    "web",
		Variant: syncer.VariantSync,
		Prefix:  "system",
		Added:   []syncer.Addition{{Destination: "system/a.png", Type: manifest.TypeImage, After: "system"}},
		Removed: []string{"system/old.png"},
		Kept:    3,
		Elapsed: 1500 * time.Millisecond,
	}

	rec, err := j.Log(FromReport(report))
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if !strings.HasPrefix(rec.ID, "sync-") {
		t.Errorf("ID = %q, want sync- prefix", rec.ID)
	}
	if rec.Summary.Added != 1 || rec.Summary.Removed != 1 || rec.Summary.Kept != 3 || rec.Summary.Elapsed != 1500 {
		t.Errorf("unexpected summary %+v", rec.Summary)
	}

	if _, err := os.Stat(filepath.Join(j.Dir(), rec.ID+".json")); err != nil {
		t.Fatalf("record file missing: %v", err)
	}

	got, err := j.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Task != "web" || got.Added[0].Destination != "system/a.png" || got.Removed[0] != "system/old.png" {
		t.Errorf("Get() = %+v", got)
	}

	if _, err := j.Get("sync-unknown"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrRecordNotFound", err)
	}
	if _, err := j.Get("../escape"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Get(../escape) error = %v, want ErrRecordNotFound", err)
	}
	if _, err := j.Get(""); err == nil {
		t.Error("Get(\"\") error = nil")
	}
}

func TestJournal_DryRunOperation(t *testing.T) {
	t.Parallel()
	j := newJournal(t)

	rec, err := j.Log(FromReport(&syncer.Report{DryRun: true}))
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if rec.Operation != OpDryRun || !strings.HasPrefix(rec.ID, "dry-run-") {
		t.Errorf("record = %+v", rec)
	}
	if rec.Added == nil || rec.Removed == nil {
		t.Error("empty slices should not be nil")
	}
}

func TestJournal_ListNewestFirst(t *testing.T) {
	t.Parallel()
	j := newJournal(t)

	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		j.now = func() time.Time { return ts }
		if _, err := j.Log(Record{Task: string(rune('a' + i))}); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	if err := os.WriteFile(filepath.Join(j.Dir(), "garbage.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	all, err := j.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("List(0) returned %d records, want 4", len(all))
	}
	if all[0].Task != "d" || all[3].Task != "a" {
		t.Errorf("wrong order: %s ... %s", all[0].Task, all[3].Task)
	}

	limited, err := j.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 || limited[0].Task != "d" {
		t.Errorf("List(2) = %+v", limited)
	}
}

func TestJournal_ListMissingDir(t *testing.T) {
	t.Parallel()
	j := newJournal(t)

	records, err := j.List(10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("List() = %v, want empty slice", records)
	}
}

func TestJournal_Cleanup(t *testing.T) {
	t.Parallel()
	j := newJournal(t)

	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	for _, age := range []int{40, 31, 5, 0} {
		ts := now.AddDate(0, 0, -age)
		j.now = func() time.Time { return ts }
		if _, err := j.Log(Record{}); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}
	j.now = func() time.Time { return now }

	removed, err := j.Cleanup(30)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Cleanup() removed %d, want 2", removed)
	}

	left, err := j.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(left) != 2 {
		t.Errorf("%d records left, want 2", len(left))
	}

	if _, err := j.Cleanup(-1); err == nil {
		t.Error("Cleanup(-1) error = nil")
	}
}

func TestJournal_ConcurrentLog(t *testing.T) {
	t.Parallel()
	j := newJournal(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := j.Log(Record{Operation: OpCheck}); err != nil {
				t.Errorf("Log() error = %v", err)
			}
		}()
	}
	wg.Wait()

	records, err := j.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 10 {
		t.Errorf("got %d records, want 10", len(records))
	}
}

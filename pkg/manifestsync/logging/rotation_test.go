package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func countLogs(t *testing.T, dir, stem string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), stem) && strings.HasSuffix(e.Name(), ".log") {
			n++
		}
	}
	return n
}

func TestRotatingWriter_SizeRotation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewRotatingWriter(filepath.Join(dir, "size.log"), RotationConfig{MaxSize: 200, MaxBackups: 3})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}

	line := []byte(strings.Repeat("x", 60) + "\n")
	for i := 0; i < 5; i++ {
		if _, err := w.Write(line); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if got := countLogs(t, dir, "size"); got < 2 {
		t.Errorf("expected rotated files, got %d log files", got)
	}

	info, err := os.Stat(filepath.Join(dir, "size.log"))
	if err != nil {
		t.Fatalf("active log missing: %v", err)
	}
	if info.Size() > 200 {
		t.Errorf("active log size = %d, want <= 200", info.Size())
	}
}

func TestRotatingWriter_DailyRotation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "daily.log")
	w, err := NewRotatingWriter(path, RotationConfig{Daily: true})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("first\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	tomorrow := time.Now().Add(24 * time.Hour)
	w.now = func() time.Time { return tomorrow }

	if _, err := w.Write([]byte("second\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	rotated := filepath.Join(dir, "daily."+tomorrow.Format(rotatedStamp)+".log")
	data, err := os.ReadFile(rotated)
	if err != nil {
		t.Fatalf("rotated file missing: %v", err)
	}
	if string(data) != "first\n" {
		t.Errorf("rotated content = %q, want %q", data, "first\n")
	}

	data, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("active file missing: %v", err)
	}
	if string(data) != "second\n" {
		t.Errorf("active content = %q, want %q", data, "second\n")
	}
}

func TestRotatingWriter_PrunesBackups(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	old := time.Now().Add(-72 * time.Hour)
	for i, name := range []string{"app.a.log", "app.b.log", "app.c.log"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		mt := old.Add(time.Duration(i) * time.Hour)
		if err := os.Chtimes(p, mt, mt); err != nil {
			t.Fatal(err)
		}
	}
	unrelated := filepath.Join(dir, "other.log")
	if err := os.WriteFile(unrelated, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewRotatingWriter(filepath.Join(dir, "app.log"), RotationConfig{MaxBackups: 1})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer w.Close()

	if _, err := os.Stat(filepath.Join(dir, "app.c.log")); err != nil {
		t.Errorf("newest backup removed: %v", err)
	}
	for _, gone := range []string{"app.a.log", "app.b.log"} {
		if _, err := os.Stat(filepath.Join(dir, gone)); !os.IsNotExist(err) {
			t.Errorf("%s should have been pruned", gone)
		}
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	t.Parallel()

	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "nested", "dir", "c.log"), RotationConfig{})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, err := w.Write([]byte("late")); err == nil {
		t.Error("Write() after Close() should fail")
	}
}

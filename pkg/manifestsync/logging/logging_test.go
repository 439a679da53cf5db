package logging_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/logging"
)

// Tests in this file share the package-level registry and do not run in parallel.

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"INFO", logging.LevelInfo, false},
		{" warn ", logging.LevelWarn, false},
		{"warning", logging.LevelWarn, false},
		{"error", logging.LevelError, false},
		{"loud", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := logging.ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, logging.ErrInvalidLevel) {
				t.Errorf("error %v does not wrap ErrInvalidLevel", err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if logging.Level(9).String() != "unknown" {
		t.Error("unexpected name for out-of-range level")
	}
}

func TestInit_InvalidConfig(t *testing.T) {
	dir := t.TempDir()

	bad := []logging.Config{
		{Level: "nope", Path: filepath.Join(dir, "a.log")},
		{Level: "info", Path: filepath.Join(dir, "b.log"), Components: map[string]string{"sync": "nope"}},
		{Level: "info", Path: filepath.Join(dir, "c.log"), ConsoleLevel: "nope"},
	}
	for _, cfg := range bad {
		if err := logging.Init(cfg); err == nil {
			t.Errorf("Init(%+v) error = nil, want error", cfg)
		}
	}
}

func TestLogger_SilentBeforeInit(t *testing.T) {
	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	logger := logging.Get("before")
	logger.Error("nobody hears this")
	if logger.Component() != "before" {
		t.Errorf("Component() = %q", logger.Component())
	}
}

func TestLogger_WritesFileAndConsole(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")
	var console bytes.Buffer

	cfg := logging.Config{
		Level:        "debug",
		Path:         logPath,
		ConsoleLevel: "warn",
		Console:      &console,
		Components:   map[string]string{"quiet": "error"},
	}
	if err := logging.Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logging.Get("sync").Debug("debug detail", "destination", "system/a.png")
	logging.Get("sync").With("run", 7).Warn("anchor missing")
	logging.Get("quiet").Info("suppressed info")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	content := string(data)
	for _, want := range []string{"debug detail", "system/a.png", "anchor missing", "run=7", "sync"} {
		if !strings.Contains(content, want) {
			t.Errorf("log file missing %q:\n%s", want, content)
		}
	}
	if strings.Contains(content, "suppressed info") {
		t.Error("component override did not suppress info")
	}

	if strings.Contains(console.String(), "debug detail") {
		t.Error("console received message below its level")
	}
	if !strings.Contains(console.String(), "anchor missing") {
		t.Errorf("console missing warning, got %q", console.String())
	}
}

func TestLogger_ReinitRebuildsExistingLoggers(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")

	if err := logging.Init(logging.Config{Level: "info", Path: first}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	logger := logging.Get("audit")
	logger.Info("one")

	if err := logging.Init(logging.Config{Level: "info", Path: second}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	logging.Get("audit").Info("two")
	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if !strings.Contains(string(data), "two") || strings.Contains(string(data), "one") {
		t.Errorf("unexpected second log content: %s", data)
	}
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "concurrent.log")
	if err := logging.Init(logging.Config{Level: "info", Path: logPath}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger := logging.Get("worker")
			for j := 0; j < 25; j++ {
				logger.Info("tick", "worker", n, "i", j)
			}
		}(i)
	}
	wg.Wait()

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if got := strings.Count(string(data), "tick"); got != 200 {
		t.Errorf("got %d lines, want 200", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := logging.DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("Level = %q", cfg.Level)
	}
	if !strings.HasSuffix(cfg.Path, filepath.Join("manifestsync", "manifestsync.log")) {
		t.Errorf("Path = %q", cfg.Path)
	}
	if cfg.Rotation.MaxSize != 10<<20 {
		t.Errorf("MaxSize = %d", cfg.Rotation.MaxSize)
	}
}

package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/manifest"
)

// ErrMissingParameter is returned when a required task parameter is empty.
var ErrMissingParameter = errors.New("missing required parameter")

// Task is one invocation of the synchronizer.
type Task struct {
	// Name identifies configured tasks in reports and history.
	Name string `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`

	// Base is the directory all destinations are relative to.
	Base string `json:"base" yaml:"base" mapstructure:"base"`

	// Directory is the subtree to synchronize; it must be inside Base.
	Directory string `json:"directory" yaml:"directory" mapstructure:"directory"`

	// XMLFile is the manifest to update.
	XMLFile string `json:"xml_file" yaml:"xml_file" mapstructure:"xml_file"`

	// Variant names a registered variant; empty means VariantSync.
	Variant string `json:"variant,omitempty" yaml:"variant,omitempty" mapstructure:"variant"`

	// DryRun computes the report without writing the manifest.
	DryRun bool `json:"dry_run,omitempty" yaml:"dry_run,omitempty" mapstructure:"dry_run"`
}

// Validate checks that the three required parameters are present.
func (t Task) Validate() error {
	var missing []string
	if strings.TrimSpace(t.Base) == "" {
		missing = append(missing, "base")
	}
	if strings.TrimSpace(t.Directory) == "" {
		missing = append(missing, "directory")
	}
	if strings.TrimSpace(t.XMLFile) == "" {
		missing = append(missing, "xmlFile")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingParameter, strings.Join(missing, ", "))
	}
	return nil
}

// Prefix returns Directory relative to Base, slash-separated.
func (t Task) Prefix() (string, error) {
	return RelativePrefix(t.Base, t.Directory)
}

// RelativePrefix returns dir relative to base as a validated prefix.
func RelativePrefix(base, dir string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolving base: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	rel, err := filepath.Rel(absBase, absDir)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideBase, dir)
	}
	return NormalizePrefix(filepath.ToSlash(rel))
}

// BuildError is the single failure reported for a task. It wraps the
// original cause.
type BuildError struct {
	Task string
	Err  error
}

func (e *BuildError) Error() string {
	if e.Task != "" {
		return fmt.Sprintf("build failed (%s): %v", e.Task, e.Err)
	}
	return fmt.Sprintf("build failed: %v", e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Run executes task: it loads the manifest, synchronizes it against the
// directory and writes it back unless the task is a dry run. Every failure
// is returned as a *BuildError.
func Run(ctx context.Context, task Task, opts ...Option) (*Report, error) {
	report, err := run(ctx, task, opts...)
	if err != nil {
		return nil, &BuildError{Task: task.Name, Err: err}
	}
	return report, nil
}

func run(ctx context.Context, task Task, opts ...Option) (*Report, error) {
	start := time.Now()

	if err := task.Validate(); err != nil {
		return nil, err
	}

	name := task.Variant
	if name == "" {
		name = VariantSync
	}
	variant, err := LookupVariant(name)
	if err != nil {
		return nil, err
	}

	prefix, err := task.Prefix()
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(task.Directory)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("reading directory: %s is not a directory", task.Directory)
	}

	doc, err := manifest.Load(task.XMLFile)
	if err != nil {
		return nil, err
	}

	s := New(osfs.New(task.Base), append([]Option{WithVariant(variant)}, opts...)...)
	report, err := s.Sync(ctx, doc, prefix)
	if err != nil {
		return nil, err
	}

	report.Task = task.Name
	report.XMLFile = task.XMLFile
	report.DryRun = task.DryRun

	if !task.DryRun {
		if err := doc.Save(task.XMLFile); err != nil {
			return nil, fmt.Errorf("writing manifest: %w", err)
		}
	}

	report.Elapsed = time.Since(start)
	return report, nil
}

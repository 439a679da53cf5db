// Package audit compares a manifest with a directory tree. By default it
// looks exactly as deep as the synchronizer does, immediate children and
// their children, so a freshly synchronized manifest audits clean. Full
// depth is available for trees maintained by other means.
package audit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/listing"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/logging"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/manifest"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/syncer"
)

// Drift is the difference between a directory tree and its manifest records.
type Drift struct {
	Prefix string `json:"prefix" yaml:"prefix"`

	// FullDepth is set when the walk went below the synchronized depth.
	FullDepth bool `json:"full_depth" yaml:"full_depth"`

	// Missing lists paths on disk that have no record.
	Missing []string `json:"missing" yaml:"missing"`

	// Stale lists records whose path is gone.
	Stale []string `json:"stale" yaml:"stale"`

	// Scanned counts the paths visited below the directory.
	Scanned int `json:"scanned" yaml:"scanned"`
}

// Clean reports whether the manifest matches the tree.
func (d *Drift) Clean() bool {
	return len(d.Missing) == 0 && len(d.Stale) == 0
}

type options struct {
	excludes  []string
	fullDepth bool
}

// Option configures Check.
type Option func(*options)

// WithExcludes skips paths matching the glob patterns, relative to the
// checked directory. Matching uses the same rules as the synchronizer.
func WithExcludes(patterns ...string) Option {
	return func(o *options) {
		o.excludes = append(o.excludes, patterns...)
	}
}

// WithFullDepth reports missing records at every depth instead of stopping
// where the synchronizer stops.
func WithFullDepth() Option {
	return func(o *options) {
		o.fullDepth = true
	}
}

// Check walks dir, which must be inside base, and compares it with the
// records of doc below the same prefix. Records whose path is gone are stale
// at any depth; paths without a record are missing only within the walked
// depth.
func Check(ctx context.Context, base, dir string, doc *manifest.Document, opts ...Option) (*Drift, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	prefix, err := syncer.RelativePrefix(base, dir)
	if err != nil {
		return nil, err
	}

	root := filepath.Join(base, filepath.FromSlash(prefix))
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	lister, err := listing.New(osfs.New(root), listing.WithExcludes(o.excludes...))
	if err != nil {
		return nil, err
	}

	log := logging.Get("audit")
	drift := &Drift{Prefix: prefix, FullDepth: o.fullDepth, Missing: []string{}, Stale: []string{}}

	// The walk callback runs on several goroutines; the document is only
	// consulted once it has finished.
	var (
		mu      sync.Mutex
		onDisk  []string
		walkErr error
	)
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			mu.Lock()
			walkErr = errors.Join(walkErr, err)
			mu.Unlock()
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if lister.Excluded(rel) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		mu.Lock()
		onDisk = append(onDisk, prefix+"/"+rel)
		mu.Unlock()

		if d.IsDir() && !o.fullDepth && strings.Count(rel, "/") >= 1 {
			return fastwalk.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	if walkErr != nil {
		return nil, fmt.Errorf("walking %s: %w", root, walkErr)
	}

	records := doc.DestinationsUnder(prefix)
	known := make(map[string]struct{}, len(records))
	for _, dest := range records {
		known[dest] = struct{}{}
	}

	drift.Scanned = len(onDisk)
	for _, dest := range onDisk {
		if _, ok := known[dest]; !ok {
			drift.Missing = append(drift.Missing, dest)
		}
	}

	for _, dest := range records {
		_, err := os.Lstat(filepath.Join(base, filepath.FromSlash(dest)))
		if errors.Is(err, os.ErrNotExist) {
			drift.Stale = append(drift.Stale, dest)
		} else if err != nil {
			return nil, fmt.Errorf("checking %s: %w", dest, err)
		}
	}

	slices.Sort(drift.Missing)
	slices.Sort(drift.Stale)

	log.Info("drift check complete", "prefix", prefix, "full_depth", o.fullDepth, "scanned", drift.Scanned,
		"missing", len(drift.Missing), "stale", len(drift.Stale))
	return drift, nil
}

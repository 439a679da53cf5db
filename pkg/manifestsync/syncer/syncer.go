// Package syncer reconciles the export/files records of a manifest with the
// contents of a directory: records of vanished files are removed and new
// files get records inserted right after their preceding sibling.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/listing"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/logging"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/manifest"
)

var (
	// ErrAnchorMissing is returned when the directory has no record to
	// insert the first new record after.
	ErrAnchorMissing = errors.New("manifest has no record for the synchronized directory")

	// ErrOutsideBase is returned when the directory is not strictly inside the base.
	ErrOutsideBase = errors.New("directory is not inside base")
)

// Syncer synchronizes manifests against a filesystem rooted at the base directory.
type Syncer struct {
	fs       billy.Filesystem
	variant  Variant
	now      func() time.Time
	ids      manifest.IDGenerator
	excludes []string
	sniff    bool
	logger   *logging.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithVariant selects the variant. The default is VariantSync.
func WithVariant(v Variant) Option {
	return func(s *Syncer) { s.variant = v }
}

// WithClock sets the time source for creation dates.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// WithIDGenerator sets the identifier source for new records.
func WithIDGenerator(ids manifest.IDGenerator) Option {
	return func(s *Syncer) { s.ids = ids }
}

// WithExcludes adds glob patterns on top of the variant's own.
func WithExcludes(patterns ...string) Option {
	return func(s *Syncer) { s.excludes = append(s.excludes, patterns...) }
}

// WithSniffer enables content sniffing for files the extension table does not know.
func WithSniffer(enabled bool) Option {
	return func(s *Syncer) { s.sniff = enabled }
}

// WithLogger sets the logger. The default is the "sync" component logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// New returns a Syncer over fsys, which must be rooted at the base directory.
func New(fsys billy.Filesystem, opts ...Option) *Syncer {
	s := &Syncer{
		fs:  fsys,
		now: time.Now,
		ids: manifest.NewUUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.variant.Classifier == nil {
		s.variant, _ = LookupVariant(VariantSync)
	}
	if s.logger == nil {
		s.logger = logging.Get("sync")
	}
	return s
}

// Variant returns the active variant.
func (s *Syncer) Variant() Variant {
	return s.variant
}

// NormalizePrefix validates dir, a slash-separated path relative to the
// base, and returns it cleaned.
func NormalizePrefix(dir string) (string, error) {
	p := path.Clean(strings.ReplaceAll(dir, "\\", "/"))
	p = strings.TrimPrefix(p, "./")
	if p == "." || p == "" || p == ".." || strings.HasPrefix(p, "../") || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q", ErrOutsideBase, dir)
	}
	return p, nil
}

// Sync reconciles doc with dir, given relative to the base. doc is modified
// in place; the caller persists it.
func (s *Syncer) Sync(ctx context.Context, doc *manifest.Document, dir string) (*Report, error) {
	start := time.Now()

	prefix, err := NormalizePrefix(dir)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Variant: s.variant.Name,
		Prefix:  prefix,
		Removed: []string{},
		Added:   []Addition{},
	}
	log := s.logger.With("prefix", prefix, "variant", s.variant.Name)

	lister, err := listing.New(s.fs, listing.WithExcludes(append(slices.Clone(s.variant.Excludes), s.excludes...)...))
	if err != nil {
		return nil, err
	}

	items, err := lister.Expand(prefix)
	if err != nil {
		return nil, err
	}
	log.Debug("directory expanded", "items", len(items))

	if err := s.prune(ctx, doc, lister, prefix, report); err != nil {
		return nil, err
	}

	hasAnchor := doc.Has(prefix)
	if !hasAnchor && s.variant.CreateAnchor {
		doc.Append(manifest.NewEntry(prefix, manifest.TypeFolder, s.now(), s.ids))
		report.Added = append(report.Added, Addition{Destination: prefix, Type: manifest.TypeFolder})
		log.Info("directory record created", "destination", prefix)
		hasAnchor = true
	}

	anchor := prefix
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dest := prefix + "/" + item.Name
		if doc.Has(dest) {
			report.Kept++
			anchor = dest
			continue
		}

		if anchor == prefix && !hasAnchor {
			return nil, fmt.Errorf("%w: %s", ErrAnchorMissing, prefix)
		}

		typ := s.classify(lister, dest, item)
		if err := doc.InsertAfter(anchor, manifest.NewEntry(dest, typ, s.now(), s.ids)); err != nil {
			return nil, fmt.Errorf("inserting %s: %w", dest, err)
		}
		report.Added = append(report.Added, Addition{Destination: dest, Type: typ, After: anchor})
		log.Debug("record added", "destination", dest, "type", typ, "after", anchor)
		anchor = dest
	}

	report.Elapsed = time.Since(start)
	log.Info("sync complete", "added", len(report.Added), "removed", len(report.Removed), "kept", report.Kept)
	return report, nil
}

// prune removes records below prefix whose path no longer exists.
func (s *Syncer) prune(ctx context.Context, doc *manifest.Document, lister *listing.Lister, prefix string, report *Report) error {
	for _, dest := range doc.DestinationsUnder(prefix) {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, err := lister.Exists(dest)
		if err != nil {
			return err
		}
		if ok {
			continue
		}

		doc.Remove(dest)
		report.Removed = append(report.Removed, dest)
		s.logger.Debug("record removed", "destination", dest)
	}
	return nil
}

func (s *Syncer) classify(lister *listing.Lister, dest string, item listing.Item) manifest.EntryType {
	c := s.variant.Classifier
	if item.IsDir || !s.sniff || c.Known(item.Name) {
		return c.Classify(item.Name, item.IsDir)
	}

	f, err := lister.Open(dest)
	if err != nil {
		s.logger.Warn("content sniffing skipped", "destination", dest, "error", err)
		return manifest.TypeFolder
	}
	defer f.Close()

	if typ, ok := manifest.SniffType(f); ok {
		return typ
	}
	return manifest.TypeFolder
}

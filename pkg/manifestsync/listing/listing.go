// Package listing enumerates a directory the way the synchronizer sees it:
// immediate children, each child directory followed by its own children.
package listing

import (
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/gobwas/glob"
)

// Item is one entry of an expanded listing.
type Item struct {
	// Name is slash-separated and relative to the listed directory,
	// e.g. "a.png" or "c/d.js".
	Name string

	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Depth returns 0 for immediate children and 1 for spliced grandchildren.
func (i Item) Depth() int {
	return strings.Count(i.Name, "/")
}

// Lister reads directories from a billy filesystem rooted at the base directory.
type Lister struct {
	fs       billy.Filesystem
	patterns []string
	excludes []glob.Glob
}

// Option configures a Lister.
type Option func(*Lister)

// WithExcludes adds glob patterns; matching items are left out of listings.
// Patterns use "/" as separator and are matched against Item.Name.
func WithExcludes(patterns ...string) Option {
	return func(l *Lister) {
		l.patterns = append(l.patterns, patterns...)
	}
}

// New returns a Lister over fsys.
func New(fsys billy.Filesystem, opts ...Option) (*Lister, error) {
	if fsys == nil {
		return nil, errors.New("listing: filesystem is nil")
	}

	l := &Lister{fs: fsys}
	for _, opt := range opts {
		opt(l)
	}

	for _, pattern := range l.patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("listing: invalid exclude pattern %q: %w", pattern, err)
		}
		l.excludes = append(l.excludes, g)
	}
	return l, nil
}

// Filesystem returns the underlying filesystem.
//
//nolint:ireturn // billy.Filesystem is an interface by design.
func (l *Lister) Filesystem() billy.Filesystem {
	return l.fs
}

// Excluded reports whether name matches any exclude pattern.
func (l *Lister) Excluded(name string) bool {
	for _, g := range l.excludes {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Expand lists dir one level deep. Children are sorted by name and every
// child directory is immediately followed by its own sorted children. The
// expansion does not recurse further.
func (l *Lister) Expand(dir string) ([]Item, error) {
	children, err := l.readDir(dir)
	if err != nil {
		return nil, err
	}

	var items []Item
	for _, child := range children {
		item := toItem("", child)
		if l.Excluded(item.Name) {
			continue
		}
		items = append(items, item)
		if !item.IsDir {
			continue
		}

		grandchildren, err := l.readDir(l.fs.Join(dir, child.Name()))
		if err != nil {
			return nil, err
		}
		for _, gc := range grandchildren {
			sub := toItem(item.Name, gc)
			if l.Excluded(sub.Name) {
				continue
			}
			items = append(items, sub)
		}
	}
	return items, nil
}

// Exists reports whether rel, relative to the filesystem root, exists.
func (l *Lister) Exists(rel string) (bool, error) {
	_, err := l.fs.Lstat(rel)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("listing: stat %q: %w", rel, err)
}

// Open opens rel for reading.
//
//nolint:ireturn // billy.File is an interface by design.
func (l *Lister) Open(rel string) (billy.File, error) {
	f, err := l.fs.Open(rel)
	if err != nil {
		return nil, fmt.Errorf("listing: open %q: %w", rel, err)
	}
	return f, nil
}

func (l *Lister) readDir(dir string) ([]os.FileInfo, error) {
	infos, err := l.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing: read %q: %w", dir, err)
	}
	slices.SortFunc(infos, func(a, b os.FileInfo) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return infos, nil
}

func toItem(parent string, info os.FileInfo) Item {
	name := info.Name()
	if parent != "" {
		name = path.Join(parent, name)
	}
	return Item{
		Name:    name,
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

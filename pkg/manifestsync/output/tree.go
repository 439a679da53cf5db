package output

import (
	"path"
	"time"

	"github.com/disiqueira/gotree/v3"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/manifest"
)

// Tree renders entries as a directory tree below root. Each node shows the
// entry type and how long ago it was last modified, relative to now.
// Parents without a record of their own are shown as bare names.
func Tree(root string, entries []manifest.Entry, now time.Time) string {
	t := entryTree{root: gotree.New(root), dirs: make(map[string]gotree.Tree)}
	for _, e := range entries {
		if e.Destination == "" {
			continue
		}
		if _, ok := t.dirs[e.Destination]; ok {
			continue
		}
		node := t.dir(path.Dir(e.Destination)).Add(label(e, now))
		if e.Type.IsFolder() {
			t.dirs[e.Destination] = node
		}
	}
	return t.root.Print()
}

type entryTree struct {
	root gotree.Tree
	dirs map[string]gotree.Tree
}

func (t entryTree) dir(p string) gotree.Tree {
	if p == "." || p == "/" || p == "" {
		return t.root
	}
	d, ok := t.dirs[p]
	if !ok {
		d = t.dir(path.Dir(p)).Add(path.Base(p))
		t.dirs[p] = d
	}
	return d
}

func label(e manifest.Entry, now time.Time) string {
	l := path.Base(e.Destination) + " [" + string(e.Type)
	if e.DateLastModified != "" {
		if ts, err := manifest.ParseDate(e.DateLastModified); err == nil {
			l += ", " + humanize.RelTime(ts, now, "ago", "from now")
		} else {
			l += ", " + e.DateLastModified
		}
	}
	return l + "]"
}

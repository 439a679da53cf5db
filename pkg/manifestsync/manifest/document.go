package manifest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/xpath"
)

// ErrEntryNotFound is returned when no file record has the requested destination.
var ErrEntryNotFound = errors.New("manifest entry not found")

// indentSpaces is the indentation used when serializing.
const indentSpaces = 2

// Document is a parsed manifest. It is not safe for concurrent use.
type Document struct {
	tree *etree.Document
}

// New returns an empty manifest with an export/files container.
func New() *Document {
	tree := etree.NewDocument()
	tree.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	tree.CreateElement("export").CreateElement("files")
	return &Document{tree: tree}
}

// Parse reads a manifest from r.
func Parse(r io.Reader) (*Document, error) {
	tree := etree.NewDocument()
	if _, err := tree.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if tree.Root() == nil {
		return nil, errors.New("failed to parse manifest: no root element")
	}
	return &Document{tree: tree}, nil
}

// ParseString reads a manifest from s.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Load reads the manifest file at path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Tree exposes the underlying XML tree.
func (d *Document) Tree() *etree.Document {
	return d.tree
}

// Bytes serializes the manifest, pretty-printed.
func (d *Document) Bytes() ([]byte, error) {
	d.tree.Indent(indentSpaces)
	return d.tree.WriteToBytes()
}

// WriteTo writes the pretty-printed manifest to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	d.tree.Indent(indentSpaces)
	return d.tree.WriteTo(w)
}

// Save writes the manifest to path atomically.
func (d *Document) Save(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}

	// Write atomically using a temp file in the same directory and rename
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set manifest permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

var filesPath = xpath.MustParse(FilesPath)

// entryPath returns the path selecting the record for destination. The
// destination is matched verbatim, so any file name is addressable.
func entryPath(destination string) xpath.Path {
	return filesPath.Join(xpath.Where(tagFile, tagDestination, destination))
}

// entryStep returns the step used to create a record. Non-folder records
// carry a source element ahead of the destination.
func entryStep(e Entry) xpath.Step {
	if e.Source == "" {
		return xpath.Where(tagFile, tagDestination, e.Destination)
	}
	return xpath.Where(tagFile, tagSource, e.Source).And(tagDestination, e.Destination)
}

// Has reports whether a record with destination exists.
func (d *Document) Has(destination string) bool {
	return len(entryPath(destination).Find(d.tree)) > 0
}

// Lookup returns the record with destination.
func (d *Document) Lookup(destination string) (Entry, error) {
	matches := entryPath(destination).Find(d.tree)
	if len(matches) == 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, destination)
	}
	return readEntry(matches[0]), nil
}

// Entries returns every record in document order.
func (d *Document) Entries() []Entry {
	files, err := xpath.Find(d.tree, FilePath)
	if err != nil {
		return nil
	}
	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		entries = append(entries, readEntry(f))
	}
	return entries
}

// Len returns the number of records.
func (d *Document) Len() int {
	files, _ := xpath.Find(d.tree, FilePath)
	return len(files)
}

// DestinationsUnder returns, in document order, the destinations that lie
// below prefix (prefix + "/" ...). An empty prefix selects every record.
func (d *Document) DestinationsUnder(prefix string) []string {
	files, _ := xpath.Find(d.tree, FilePath)
	var out []string
	for _, f := range files {
		dest := childText(f, tagDestination)
		if dest == "" {
			continue
		}
		if prefix == "" || strings.HasPrefix(dest, prefix+"/") {
			out = append(out, dest)
		}
	}
	return out
}

// Remove deletes the record for destination. It returns the number of
// records removed, which is zero when none existed.
func (d *Document) Remove(destination string) int {
	return entryPath(destination).Remove(d.tree)
}

// InsertAfter adds e immediately after the record for anchor.
func (d *Document) InsertAfter(anchor string, e Entry) error {
	if _, err := entryPath(anchor).InsertAfter(d.tree, entryStep(e)); err != nil {
		if errors.Is(err, xpath.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, anchor)
		}
		return err
	}
	d.fill(e)
	return nil
}

// Append adds e as the last record, creating export/files if needed.
func (d *Document) Append(e Entry) {
	filesPath.Join(entryStep(e), xpath.Elem(tagType)).SetValue(d.tree, string(e.Type))
	d.fill(e)
}

// fill writes the record's remaining children in schema order.
func (d *Document) fill(e Entry) {
	base := entryPath(e.Destination)

	fields := []struct {
		tag   string
		value string
	}{
		{tagType, string(e.Type)},
		{tagUUIDStructure, e.UUIDStructure},
		{tagUUIDResource, e.UUIDResource},
		{tagDateLastModified, e.DateLastModified},
		{tagUserLastModified, e.UserLastModified},
		{tagDateCreated, e.DateCreated},
		{tagUserCreated, e.UserCreated},
		{tagFlags, e.Flags},
		{tagProperties, ""},
		{tagRelations, ""},
		{tagAccessControl, ""},
	}
	for _, f := range fields {
		base.Join(xpath.Elem(f.tag)).SetValue(d.tree, f.value)
	}
}

func readEntry(f *etree.Element) Entry {
	return Entry{
		Destination:      childText(f, tagDestination),
		Source:           childText(f, tagSource),
		Type:             EntryType(childText(f, tagType)),
		UUIDStructure:    childText(f, tagUUIDStructure),
		UUIDResource:     childText(f, tagUUIDResource),
		DateLastModified: childText(f, tagDateLastModified),
		UserLastModified: childText(f, tagUserLastModified),
		DateCreated:      childText(f, tagDateCreated),
		UserCreated:      childText(f, tagUserCreated),
		Flags:            childText(f, tagFlags),
	}
}

func childText(e *etree.Element, tag string) string {
	if c := e.SelectElement(tag); c != nil {
		return c.Text()
	}
	return ""
}

package manifest

import (
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Classifier maps a path to its entry type by file extension.
type Classifier struct {
	name  string
	table map[string]EntryType
}

// NewClassifier returns a classifier for the given extension table.
// Extensions are matched case-insensitively and must include the dot.
func NewClassifier(name string, table map[string]EntryType) *Classifier {
	normalized := make(map[string]EntryType, len(table))
	for ext, typ := range table {
		normalized[strings.ToLower(ext)] = typ
	}
	return &Classifier{name: name, table: normalized}
}

// Name returns the classifier's name.
func (c *Classifier) Name() string {
	return c.name
}

// Classify returns the entry type for name. Directories are always folders,
// as is anything whose extension is not in the table.
func (c *Classifier) Classify(name string, isDir bool) EntryType {
	if isDir {
		return TypeFolder
	}
	if typ, ok := c.table[strings.ToLower(path.Ext(name))]; ok {
		return typ
	}
	return TypeFolder
}

// Known reports whether name has an extension in the table.
func (c *Classifier) Known(name string) bool {
	_, ok := c.table[strings.ToLower(path.Ext(name))]
	return ok
}

// ClassicClassifier is the extension table of the original sync task.
func ClassicClassifier() *Classifier {
	return NewClassifier("classic", map[string]EntryType{
		".png":  TypeImage,
		".gif":  TypeImage,
		".jpg":  TypeImage,
		".jar":  TypeBinary,
		".html": TypePlain,
		".js":   TypePlain,
		".xml":  TypePlain,
		".rpc":  TypePlain,
		".css":  TypePlain,
	})
}

// ExtendedClassifier adds class files, more text formats and JSP templates.
func ExtendedClassifier() *Classifier {
	return NewClassifier("extended", map[string]EntryType{
		".png":        TypeImage,
		".gif":        TypeImage,
		".jpg":        TypeImage,
		".jar":        TypeBinary,
		".class":      TypeBinary,
		".html":       TypePlain,
		".js":         TypePlain,
		".xml":        TypePlain,
		".rpc":        TypePlain,
		".css":        TypePlain,
		".properties": TypePlain,
		".xsd":        TypePlain,
		".txt":        TypePlain,
		".java":       TypePlain,
		".jsp":        TypeJSP,
	})
}

// SniffType guesses a type from file content. The second return value is
// false when the content does not map to a type.
func SniffType(r io.Reader) (EntryType, bool) {
	mt, err := mimetype.DetectReader(r)
	if err != nil || mt == nil {
		return "", false
	}

	for m := mt; m != nil; m = m.Parent() {
		switch {
		case strings.HasPrefix(m.String(), "image/"):
			return TypeImage, true
		case m.Is("application/zip"), m.Is("application/jar"), m.Is("application/java-archive"),
			m.Is("application/x-java-applet"):
			return TypeBinary, true
		case strings.HasPrefix(m.String(), "text/"):
			return TypePlain, true
		}
	}
	return "", false
}

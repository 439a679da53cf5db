// Package manifest models the XML export manifest: an ordered list of
// export/files/file records, each keyed by its destination path.
package manifest

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// EntryType classifies a manifest file record.
type EntryType string

const (
	// TypeFolder is used for directories and any unrecognised file.
	TypeFolder EntryType = "folder"
	// TypeImage is used for image resources.
	TypeImage EntryType = "image"
	// TypeBinary is used for archives and compiled classes.
	TypeBinary EntryType = "binary"
	// TypePlain is used for text and template resources.
	TypePlain EntryType = "plain"
	// TypeJSP is used for JSP templates.
	TypeJSP EntryType = "jsp"
)

// IsFolder reports whether t is the folder type.
func (t EntryType) IsFolder() bool {
	return t == TypeFolder
}

// Fixed values written into every new entry.
const (
	DefaultUser  = "Admin"
	DefaultFlags = "0"
)

// Element names of the manifest schema.
const (
	FilesPath = "export/files"
	FilePath  = FilesPath + "/file"

	tagFile             = "file"
	tagSource           = "source"
	tagDestination      = "destination"
	tagType             = "type"
	tagUUIDStructure    = "uuidstructure"
	tagUUIDResource     = "uuidresource"
	tagDateLastModified = "datelastmodified"
	tagUserLastModified = "userlastmodified"
	tagDateCreated      = "datecreated"
	tagUserCreated      = "usercreated"
	tagFlags            = "flags"
	tagProperties       = "properties"
	tagRelations        = "relations"
	tagAccessControl    = "accesscontrol"
)

// Entry is a single export/files/file record.
type Entry struct {
	// Destination is the slash-separated path relative to the base directory.
	Destination string `json:"destination" yaml:"destination"`

	// Source is the extraction source; set for non-folder entries only.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	Type             EntryType `json:"type" yaml:"type"`
	UUIDStructure    string    `json:"uuid_structure" yaml:"uuid_structure"`
	UUIDResource     string    `json:"uuid_resource" yaml:"uuid_resource"`
	DateLastModified string    `json:"date_last_modified" yaml:"date_last_modified"`
	UserLastModified string    `json:"user_last_modified" yaml:"user_last_modified"`
	DateCreated      string    `json:"date_created" yaml:"date_created"`
	UserCreated      string    `json:"user_created" yaml:"user_created"`
	Flags            string    `json:"flags" yaml:"flags"`
}

// IDGenerator returns a fresh unique identifier.
type IDGenerator func() string

// NewUUID returns a random canonical UUID string.
func NewUUID() string {
	return uuid.NewString()
}

// FormatDate renders t as an HTTP header date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// ParseDate parses an HTTP header date as written by FormatDate.
func ParseDate(s string) (time.Time, error) {
	return http.ParseTime(s)
}

// NewEntry builds a fresh record for destination. Both identifiers come from
// ids (NewUUID when nil) and both dates are set to now.
func NewEntry(destination string, typ EntryType, now time.Time, ids IDGenerator) Entry {
	if ids == nil {
		ids = NewUUID
	}
	date := FormatDate(now)

	e := Entry{
		Destination:      destination,
		Type:             typ,
		UUIDStructure:    ids(),
		UUIDResource:     ids(),
		DateLastModified: date,
		UserLastModified: DefaultUser,
		DateCreated:      date,
		UserCreated:      DefaultUser,
		Flags:            DefaultFlags,
	}
	if !typ.IsFolder() {
		e.Source = destination
	}
	return e
}

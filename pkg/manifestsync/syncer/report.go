package syncer

import (
	"time"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/manifest"
)

// Addition describes a record inserted by a run.
type Addition struct {
	Destination string             `json:"destination" yaml:"destination"`
	Type        manifest.EntryType `json:"type" yaml:"type"`

	// After is the destination of the record it was inserted behind; empty
	// when the record was appended to the container.
	After string `json:"after,omitempty" yaml:"after,omitempty"`
}

// Report summarizes a synchronization run.
type Report struct {
	Task    string `json:"task,omitempty" yaml:"task,omitempty"`
	Variant string `json:"variant" yaml:"variant"`
	XMLFile string `json:"xml_file,omitempty" yaml:"xml_file,omitempty"`

	// Prefix is the synchronized directory relative to the base.
	Prefix string `json:"prefix" yaml:"prefix"`

	Removed []string   `json:"removed" yaml:"removed"`
	Added   []Addition `json:"added" yaml:"added"`

	// Kept counts listing items that already had a record.
	Kept int `json:"kept" yaml:"kept"`

	DryRun  bool          `json:"dry_run" yaml:"dry_run"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Changed reports whether the run added or removed anything.
func (r *Report) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

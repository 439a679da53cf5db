// Package journal keeps a history of synchronization runs, one JSON file per run.
package journal

import (
	"time"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/syncer"
)

// Operation is the kind of run that was recorded.
type Operation string

const (
	// OpSync is a run that wrote the manifest.
	OpSync Operation = "sync"
	// OpDryRun is a run that only computed its changes.
	OpDryRun Operation = "dry-run"
	// OpCheck is a drift check.
	OpCheck Operation = "check"
)

// Record is a single history entry.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Operation Operation `json:"operation"`

	Task    string `json:"task,omitempty"`
	Variant string `json:"variant,omitempty"`
	XMLFile string `json:"xml_file,omitempty"`
	Prefix  string `json:"prefix"`

	Added   []syncer.Addition `json:"added"`
	Removed []string          `json:"removed"`

	// Error holds the failure message of an unsuccessful run.
	Error string `json:"error,omitempty"`

	Summary Summary `json:"summary"`
}

// Summary holds the counts of a run.
type Summary struct {
	Added   int   `json:"added"`
	Removed int   `json:"removed"`
	Kept    int   `json:"kept"`
	Elapsed int64 `json:"elapsed_ms"`
}

// FromReport converts a synchronization report into a record.
func FromReport(r *syncer.Report) Record {
	op := OpSync
	if r.DryRun {
		op = OpDryRun
	}
	return Record{
		Operation: op,
		Task:      r.Task,
		Variant:   r.Variant,
		XMLFile:   r.XMLFile,
		Prefix:    r.Prefix,
		Added:     r.Added,
		Removed:   r.Removed,
		Summary: Summary{
			Added:   len(r.Added),
			Removed: len(r.Removed),
			Kept:    r.Kept,
			Elapsed: r.Elapsed.Milliseconds(),
		},
	}
}

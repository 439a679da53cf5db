package output

import (
	"bytes"
	"encoding/json"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/audit"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/manifest"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/syncer"
)

// document is the structure shared by the json and yaml formatters.
type document struct {
	Source  string           `json:"source,omitempty" yaml:"source,omitempty"`
	Reports []reportView     `json:"reports,omitempty" yaml:"reports,omitempty"`
	Totals  *Totals          `json:"totals,omitempty" yaml:"totals,omitempty"`
	Drift   *driftView       `json:"drift,omitempty" yaml:"drift,omitempty"`
	Entries []manifest.Entry `json:"entries,omitempty" yaml:"entries,omitempty"`
}

type reportView struct {
	Task    string            `json:"task,omitempty" yaml:"task,omitempty"`
	Variant string            `json:"variant" yaml:"variant"`
	XMLFile string            `json:"xml_file,omitempty" yaml:"xml_file,omitempty"`
	Prefix  string            `json:"prefix" yaml:"prefix"`
	Removed []string          `json:"removed" yaml:"removed"`
	Added   []syncer.Addition `json:"added" yaml:"added"`
	Kept    int               `json:"kept" yaml:"kept"`
	DryRun  bool              `json:"dry_run" yaml:"dry_run"`
	Elapsed string            `json:"elapsed" yaml:"elapsed"`
}

type driftView struct {
	Prefix    string   `json:"prefix" yaml:"prefix"`
	Clean     bool     `json:"clean" yaml:"clean"`
	FullDepth bool     `json:"full_depth" yaml:"full_depth"`
	Missing   []string `json:"missing" yaml:"missing"`
	Stale     []string `json:"stale" yaml:"stale"`
	Scanned   int      `json:"scanned" yaml:"scanned"`
}

// buildDocument converts r so that empty lists encode as [] rather than null.
func buildDocument(r *Result) document {
	doc := document{Source: r.Source, Entries: r.Entries}

	for _, rep := range r.Reports {
		v := reportView{
			Task:    rep.Task,
			Variant: rep.Variant,
			XMLFile: rep.XMLFile,
			Prefix:  rep.Prefix,
			Removed: nonNil(rep.Removed),
			Added:   rep.Added,
			Kept:    rep.Kept,
			DryRun:  rep.DryRun,
			Elapsed: rep.Elapsed.String(),
		}
		if v.Added == nil {
			v.Added = []syncer.Addition{}
		}
		doc.Reports = append(doc.Reports, v)
	}
	if len(r.Reports) > 0 {
		t := r.Totals()
		doc.Totals = &t
	}

	if r.Drift != nil {
		doc.Drift = newDriftView(r.Drift)
	}
	return doc
}

func newDriftView(d *audit.Drift) *driftView {
	return &driftView{
		Prefix:    d.Prefix,
		Clean:     d.Clean(),
		FullDepth: d.FullDepth,
		Missing:   nonNil(d.Missing),
		Stale:     nonNil(d.Stale),
		Scanned:   d.Scanned,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// JSONFormatter writes a single indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocument(r))
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)

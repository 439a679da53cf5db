package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/audit"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/syncer"
)

// PrettyFormatter renders styled output for a terminal.
type PrettyFormatter struct {
	// Now is used for relative dates; time.Now when nil.
	Now func() time.Time
}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	for i := range r.Reports {
		if i > 0 {
			w.WriteString("\n")
		}
		f.formatReport(w, &r.Reports[i])
	}
	if len(r.Reports) > 1 {
		t := r.Totals()
		w.WriteString("\n")
		w.WriteString(FooterBox.Render(fmt.Sprintf("%s %s",
			LabelStyle.Render(fmt.Sprintf("%d tasks:", len(r.Reports))), summary(t.Added, t.Removed, t.Kept))))
		w.WriteString("\n")
	}

	if r.Drift != nil {
		f.formatDrift(w, r.Source, r.Drift)
	}

	if r.Entries != nil {
		now := time.Now
		if f.Now != nil {
			now = f.Now
		}
		root := r.Source
		if root == "" {
			root = "manifest"
		}
		w.WriteString(Tree(root, r.Entries, now()))
		w.WriteString(MutedStyle.Render(fmt.Sprintf("%s records", humanize.Comma(int64(len(r.Entries))))))
		w.WriteString("\n")
	}
	return nil
}

func (f *PrettyFormatter) formatReport(w *bytes.Buffer, rep *syncer.Report) {
	var lines []string
	title := rep.XMLFile
	if rep.Task != "" {
		title = rep.Task + "  " + MutedStyle.Render(rep.XMLFile)
	}
	lines = append(lines, TitleStyle.Render(title))
	lines = append(lines, fmt.Sprintf("%s %s  %s %s",
		LabelStyle.Render("Directory:"), ValueStyle.Render(rep.Prefix),
		LabelStyle.Render("Variant:"), ValueStyle.Render(rep.Variant)))
	w.WriteString(HeaderBox.Render(strings.Join(lines, "\n")))
	w.WriteString("\n")

	if !rep.Changed() {
		w.WriteString(MutedStyle.Render("  Manifest already up to date"))
		w.WriteString("\n")
	}
	for _, dest := range rep.Removed {
		w.WriteString(RemovedStyle.Render("  - " + dest))
		w.WriteString("\n")
	}
	for _, a := range rep.Added {
		line := AddedStyle.Render("  + "+a.Destination) + " " + MutedStyle.Render("("+string(a.Type)+")")
		w.WriteString(line)
		w.WriteString("\n")
	}

	footer := summary(len(rep.Added), len(rep.Removed), rep.Kept) + "  " +
		MutedStyle.Render("in "+formatDuration(rep.Elapsed))
	if rep.DryRun {
		footer += "  " + WarningStyle.Bold(true).Render("dry run, manifest not written")
	}
	w.WriteString(FooterBox.Render(footer))
	w.WriteString("\n")
}

func (f *PrettyFormatter) formatDrift(w *bytes.Buffer, source string, d *audit.Drift) {
	header := fmt.Sprintf("%s %s  %s %s",
		LabelStyle.Render("Directory:"), ValueStyle.Render(d.Prefix),
		LabelStyle.Render("Scanned:"), ValueStyle.Render(humanize.Comma(int64(d.Scanned))+" paths"))
	if d.FullDepth {
		header += "  " + MutedStyle.Render("(full depth)")
	}
	if source != "" {
		header = TitleStyle.Render(source) + "\n" + header
	}
	w.WriteString(HeaderBox.Render(header))
	w.WriteString("\n")

	for _, p := range d.Missing {
		w.WriteString(AddedStyle.Render("  missing  " + p))
		w.WriteString("\n")
	}
	for _, p := range d.Stale {
		w.WriteString(RemovedStyle.Render("  stale    " + p))
		w.WriteString("\n")
	}

	var footer string
	if d.Clean() {
		footer = AddedStyle.Render("Manifest matches the directory tree")
	} else {
		footer = WarningStyle.Render(fmt.Sprintf("%d missing, %d stale", len(d.Missing), len(d.Stale)))
	}
	w.WriteString(FooterBox.Render(footer))
	w.WriteString("\n")
}

func summary(added, removed, kept int) string {
	return fmt.Sprintf("%s %s  %s %s  %s %s",
		LabelStyle.Render("Added:"), AddedStyle.Render(humanize.Comma(int64(added))),
		LabelStyle.Render("Removed:"), RemovedStyle.Render(humanize.Comma(int64(removed))),
		LabelStyle.Render("Kept:"), ValueStyle.Render(humanize.Comma(int64(kept))))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)

package output

import (
	"bytes"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/manifest"
)

// TableFormatter renders aligned tables. Reports become one row per change,
// drift one row per path, listings one row per entry.
type TableFormatter struct {
	// Now is used for relative dates; time.Now when nil.
	Now func() time.Time
}

// Format writes the formatted output to the buffer.
func (f *TableFormatter) Format(w *bytes.Buffer, r *Result) error {
	if len(r.Reports) > 0 {
		table := newTable(w, []string{"Task", "Action", "Destination", "Type", "After"})
		for _, rep := range r.Reports {
			task := rep.Task
			if task == "" {
				task = rep.Prefix
			}
			for _, dest := range rep.Removed {
				table.Append([]string{task, "removed", dest, "", ""})
			}
			for _, a := range rep.Added {
				table.Append([]string{task, "added", a.Destination, string(a.Type), a.After})
			}
		}
		table.Render()
		t := r.Totals()
		fmt.Fprintf(w, "\n%d added, %d removed, %d kept\n", t.Added, t.Removed, t.Kept)
	}

	if r.Drift != nil {
		table := newTable(w, []string{"Status", "Path"})
		for _, p := range r.Drift.Missing {
			table.Append([]string{"missing", p})
		}
		for _, p := range r.Drift.Stale {
			table.Append([]string{"stale", p})
		}
		table.Render()
	}

	if r.Entries != nil {
		now := time.Now
		if f.Now != nil {
			now = f.Now
		}
		table := newTable(w, []string{"Destination", "Type", "Modified", "Resource"})
		for _, e := range r.Entries {
			modified := e.DateLastModified
			if ts, err := manifest.ParseDate(e.DateLastModified); err == nil {
				modified = humanize.RelTime(ts, now(), "ago", "from now")
			}
			table.Append([]string{e.Destination, string(e.Type), modified, e.UUIDResource})
		}
		table.Render()
	}
	return nil
}

func newTable(w *bytes.Buffer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

func init() {
	Register("table", func() Formatter {
		return &TableFormatter{}
	})
}

// Ensure TableFormatter implements Formatter.
var _ Formatter = (*TableFormatter)(nil)

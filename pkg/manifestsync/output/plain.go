package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// PlainFormatter writes one tab-separated line per change, drift path or
// entry, with no header or styling, for scripts.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	for _, rep := range r.Reports {
		for _, dest := range rep.Removed {
			fmt.Fprintf(tw, "-\t%s\n", dest)
		}
		for _, a := range rep.Added {
			fmt.Fprintf(tw, "+\t%s\t%s\n", a.Destination, a.Type)
		}
	}

	if r.Drift != nil {
		for _, p := range r.Drift.Missing {
			fmt.Fprintf(tw, "missing\t%s\n", p)
		}
		for _, p := range r.Drift.Stale {
			fmt.Fprintf(tw, "stale\t%s\n", p)
		}
	}

	for _, e := range r.Entries {
		fmt.Fprintf(tw, "%s\t%s\n", e.Destination, e.Type)
	}

	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)

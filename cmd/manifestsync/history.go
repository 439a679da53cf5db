package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/journal"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "View previous runs",
		Long: `View the history of sync, dry-run and check operations.

Each run is stored as one JSON file in the history directory
(history.path in the config file).`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.runHistory(limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of entries to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show details of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.runHistoryShow(args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Remove entries older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.runHistoryClean()
		},
	})
	return cmd
}

func (c *cli) openJournal() (*journal.Journal, error) {
	j, err := journal.New(c.cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return j, nil
}

// runHistory lists recent runs.
func (c *cli) runHistory(limit int) error {
	j, err := c.openJournal()
	if err != nil {
		return err
	}

	records, err := j.List(limit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(records) == 0 {
		c.printInfo("No history entries found.")
		c.printInfo("Run 'manifestsync sync' to synchronize a manifest.")
		return nil
	}

	fmt.Fprintf(c.out, "%-44s  %-8s  %-16s  %7s  %7s  %s\n", "ID", "TYPE", "WHEN", "ADDED", "REMOVED", "PREFIX")
	fmt.Fprintln(c.out, strings.Repeat("-", 100))

	for _, rec := range records {
		prefix := rec.Prefix
		if rec.Error != "" {
			prefix = "FAILED " + truncateString(rec.Error, 40)
		}
		fmt.Fprintf(c.out, "%-44s  %-8s  %-16s  %7d  %7d  %s\n",
			truncateString(rec.ID, 44),
			rec.Operation,
			humanize.Time(rec.Timestamp),
			rec.Summary.Added,
			rec.Summary.Removed,
			prefix,
		)
	}

	c.printInfo("\nShowing %d entries. Use --limit to see more.", len(records))
	c.printInfo("Use 'manifestsync history show <id>' for details on a specific entry.")
	return nil
}

// runHistoryShow displays a single run.
func (c *cli) runHistoryShow(id string) error {
	j, err := c.openJournal()
	if err != nil {
		return err
	}

	rec, err := j.Get(id)
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	fmt.Fprintln(c.out, "Run Details")
	fmt.Fprintln(c.out, strings.Repeat("=", 60))
	fmt.Fprintf(c.out, "ID:         %s\n", rec.ID)
	fmt.Fprintf(c.out, "Timestamp:  %s (%s)\n", rec.Timestamp.Format("2006-01-02 15:04:05 MST"), humanize.Time(rec.Timestamp))
	fmt.Fprintf(c.out, "Operation:  %s\n", rec.Operation)
	if rec.Task != "" {
		fmt.Fprintf(c.out, "Task:       %s\n", rec.Task)
	}
	if rec.Variant != "" {
		fmt.Fprintf(c.out, "Variant:    %s\n", rec.Variant)
	}
	fmt.Fprintf(c.out, "Manifest:   %s\n", rec.XMLFile)
	fmt.Fprintf(c.out, "Prefix:     %s\n", rec.Prefix)
	fmt.Fprintf(c.out, "Added:      %d\n", rec.Summary.Added)
	fmt.Fprintf(c.out, "Removed:    %d\n", rec.Summary.Removed)
	fmt.Fprintf(c.out, "Kept:       %d\n", rec.Summary.Kept)
	fmt.Fprintf(c.out, "Elapsed:    %dms\n", rec.Summary.Elapsed)
	if rec.Error != "" {
		fmt.Fprintf(c.out, "Error:      %s\n", rec.Error)
	}

	const maxShown = 50
	if len(rec.Removed) > 0 {
		fmt.Fprintln(c.out, "\nRemoved:")
		for i, dest := range rec.Removed {
			if i == maxShown {
				fmt.Fprintf(c.out, "  ... and %d more\n", len(rec.Removed)-maxShown)
				break
			}
			fmt.Fprintf(c.out, "  - %s\n", dest)
		}
	}
	if len(rec.Added) > 0 {
		fmt.Fprintln(c.out, "\nAdded:")
		for i, a := range rec.Added {
			if i == maxShown {
				fmt.Fprintf(c.out, "  ... and %d more\n", len(rec.Added)-maxShown)
				break
			}
			if a.Type != "" {
				fmt.Fprintf(c.out, "  + %s (%s)\n", a.Destination, a.Type)
			} else {
				fmt.Fprintf(c.out, "  + %s\n", a.Destination)
			}
		}
	}
	return nil
}

// runHistoryClean removes old history entries.
func (c *cli) runHistoryClean() error {
	j, err := c.openJournal()
	if err != nil {
		return err
	}

	days := c.cfg.History.RetentionDays
	c.printInfo("Cleaning history entries older than %d days...", days)

	removed, err := j.Cleanup(days)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}
	c.printInfo("Removed %d entries.", removed)
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

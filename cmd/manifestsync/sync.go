package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/journal"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/logging"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/output"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/syncer"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/watcher"
)

// syncFlags are the flags shared by sync and ensure.
type syncFlags struct {
	task    syncer.Task
	watch   bool
	sniff   bool
	exclude []string
}

func newSyncCmd(c *cli, variant string) *cobra.Command {
	var f syncFlags

	short := "Synchronize a manifest with a directory"
	if v, err := syncer.LookupVariant(variant); err == nil && v.Description != "" {
		short = v.Description
	}

	cmd := &cobra.Command{
		Use:   variant,
		Short: short,
		Long: short + `.

The directory is listed one level deep: its entries and the entries of each
immediate subdirectory. Records below the directory whose path no longer
exists are removed first; then every listed path without a record gets one,
inserted after the record of the path listed before it.

--base, --directory and --xml-file are required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.task.Variant = variant
			return c.runSync(cmd.Context(), f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.task.Base, "base", "b", "", "directory all destinations are relative to (required)")
	flags.StringVarP(&f.task.Directory, "directory", "d", "", "directory to synchronize, inside --base (required)")
	flags.StringVarP(&f.task.XMLFile, "xml-file", "x", "", "manifest to update (required)")
	flags.BoolVarP(&f.task.DryRun, "dry-run", "n", false, "report changes without writing the manifest")
	flags.BoolVarP(&f.watch, "watch", "w", false, "keep running and re-synchronize on changes")
	flags.BoolVar(&f.sniff, "sniff", false, "guess the type of unknown files from their content")
	flags.StringSliceVarP(&f.exclude, "exclude", "e", nil, "glob patterns to skip, relative to --directory (repeatable)")
	return cmd
}

func (c *cli) runSync(ctx context.Context, f syncFlags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := c.syncOptions(f.sniff, f.exclude)

	c.printVerbose("Synchronizing %s into %s (%s)", f.task.Directory, f.task.XMLFile, f.task.Variant)
	report, err := syncer.Run(ctx, f.task, opts...)
	c.record(f.task, report, err)
	if err != nil {
		return err
	}
	if err := c.render(&output.Result{Source: f.task.XMLFile, Reports: []syncer.Report{*report}}); err != nil {
		return err
	}

	if !f.watch {
		return nil
	}
	return c.watch(ctx, f.task, opts)
}

// syncOptions builds the synchronizer options from the configuration and
// command-line overrides.
func (c *cli) syncOptions(sniff bool, exclude []string) []syncer.Option {
	opts := []syncer.Option{syncer.WithLogger(logging.Get("sync"))}
	if patterns := c.cfg.Excludes(exclude...); len(patterns) > 0 {
		opts = append(opts, syncer.WithExcludes(patterns...))
	}
	if sniff || c.cfg.SniffContent {
		opts = append(opts, syncer.WithSniffer(true))
	}
	return opts
}

// watch re-runs task whenever the directory changes, until ctx is done.
func (c *cli) watch(ctx context.Context, task syncer.Task, opts []syncer.Option) error {
	w, err := watcher.New(task.Directory, c.cfg.Watch.Debounce)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", task.Directory, err)
	}
	defer w.Close()
	w.Ignore(task.XMLFile)

	c.printInfo("Watching %s for changes (Ctrl+C to stop)", task.Directory)

	return w.Run(ctx, func(ctx context.Context, changed []string) error {
		changed = withoutManifest(changed, task.XMLFile)
		if len(changed) == 0 {
			return nil
		}
		c.printVerbose("%d paths changed", len(changed))

		report, err := syncer.Run(ctx, task, opts...)
		c.record(task, report, err)
		if err != nil {
			c.reportError(err)
			return err
		}
		if !report.Changed() {
			return nil
		}
		return c.render(&output.Result{Source: task.XMLFile, Reports: []syncer.Report{*report}})
	})
}

// withoutManifest drops events caused by writing the manifest itself,
// including its temporary files.
func withoutManifest(changed []string, xmlFile string) []string {
	abs, err := filepath.Abs(xmlFile)
	if err != nil {
		return changed
	}
	out := changed[:0:0]
	for _, p := range changed {
		if p == abs || (strings.HasPrefix(p, abs+".") && strings.HasSuffix(p, ".tmp")) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// record appends a run to the history when it is enabled. Failures to
// record are logged, never returned.
func (c *cli) record(task syncer.Task, report *syncer.Report, runErr error) {
	if !c.cfg.History.Enabled {
		return
	}
	log := logging.Get("history")

	j, err := journal.New(c.cfg.History.Path)
	if err != nil {
		log.Warn("failed to open history", "path", c.cfg.History.Path, "error", err)
		return
	}

	var rec journal.Record
	if report != nil {
		rec = journal.FromReport(report)
	} else {
		rec = journal.Record{
			Operation: journal.OpSync,
			Task:      task.Name,
			Variant:   task.Variant,
			XMLFile:   task.XMLFile,
		}
		if task.DryRun {
			rec.Operation = journal.OpDryRun
		}
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}

	saved, err := j.Log(rec)
	if err != nil {
		log.Warn("failed to record run", "error", err)
		return
	}
	c.printVerbose("Recorded run %s", saved.ID)
}

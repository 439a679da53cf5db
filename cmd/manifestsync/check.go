package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/audit"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/journal"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/logging"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/manifest"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/output"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/syncer"
)

// errDrift is returned by check when the manifest does not match the tree.
var errDrift = errors.New("manifest is out of date")

func newCheckCmd(c *cli) *cobra.Command {
	var (
		task     syncer.Task
		taskName  string
		exclude   []string
		fullDepth bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report drift between a manifest and a directory tree",
		Long: `Walk the directory and compare it with the manifest records below it.
Paths without a record are reported as missing, records whose path is gone
as stale. The manifest is never modified.

The walk covers the depth sync maintains: the directory's children and
their children. Use --full-depth to look for missing records at every depth.

Exits with a non-zero status when drift is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if taskName != "" {
				configured, err := c.cfg.Task(taskName)
				if err != nil {
					return err
				}
				task = configured
			}
			if err := task.Validate(); err != nil {
				return err
			}
			return c.runCheck(cmd.Context(), task, exclude, fullDepth)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&task.Base, "base", "b", "", "directory all destinations are relative to")
	flags.StringVarP(&task.Directory, "directory", "d", "", "directory to check, inside --base")
	flags.StringVarP(&task.XMLFile, "xml-file", "x", "", "manifest to compare")
	flags.StringVarP(&taskName, "task", "t", "", "take base, directory and manifest from a configured task")
	flags.StringSliceVarP(&exclude, "exclude", "e", nil, "glob patterns to skip, relative to --directory (repeatable)")
	flags.BoolVar(&fullDepth, "full-depth", false, "report missing records below the depth sync maintains")
	return cmd
}

func (c *cli) runCheck(ctx context.Context, task syncer.Task, exclude []string, fullDepth bool) error {
	doc, err := manifest.Load(task.XMLFile)
	if err != nil {
		return err
	}

	excludes := c.cfg.Excludes(exclude...)
	if task.Variant == syncer.VariantEnsure {
		excludes = append(excludes, syncer.CVSExcludes...)
	}

	opts := []audit.Option{audit.WithExcludes(excludes...)}
	if fullDepth {
		opts = append(opts, audit.WithFullDepth())
	}
	drift, err := audit.Check(ctx, task.Base, task.Directory, doc, opts...)
	if err != nil {
		return err
	}
	c.recordCheck(task, drift)

	if err := c.render(&output.Result{Source: task.XMLFile, Drift: drift}); err != nil {
		return err
	}
	if !drift.Clean() {
		return fmt.Errorf("%w: %d missing, %d stale", errDrift, len(drift.Missing), len(drift.Stale))
	}
	return nil
}

// recordCheck stores a drift check in the history. Missing paths are
// recorded as the additions a sync would make.
func (c *cli) recordCheck(task syncer.Task, drift *audit.Drift) {
	if !c.cfg.History.Enabled {
		return
	}
	log := logging.Get("history")

	j, err := journal.New(c.cfg.History.Path)
	if err != nil {
		log.Warn("failed to open history", "path", c.cfg.History.Path, "error", err)
		return
	}

	added := make([]syncer.Addition, 0, len(drift.Missing))
	for _, p := range drift.Missing {
		added = append(added, syncer.Addition{Destination: p})
	}
	rec := journal.Record{
		Operation: journal.OpCheck,
		Task:      task.Name,
		XMLFile:   task.XMLFile,
		Prefix:    drift.Prefix,
		Added:     added,
		Removed:   drift.Stale,
		Summary: journal.Summary{
			Added:   len(drift.Missing),
			Removed: len(drift.Stale),
			Kept:    drift.Scanned - len(drift.Missing),
		},
	}
	if _, err := j.Log(rec); err != nil {
		log.Warn("failed to record check", "error", err)
	}
}

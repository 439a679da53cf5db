package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/output"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/syncer"
)

func newRunCmd(c *cli) *cobra.Command {
	var (
		dryRun bool
		sniff  bool
	)

	cmd := &cobra.Command{
		Use:   "run [task...]",
		Short: "Run tasks from the config file",
		Long: `Run the named tasks from the "tasks" list of the config file, in the
order given. Without arguments every configured task runs in file order.
The first failing task stops the run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = c.cfg.TaskNames()
			}
			if len(names) == 0 {
				c.printInfo("No tasks configured.")
				c.printInfo("Add a tasks list to %s or use 'manifestsync sync'.", configFileHint(c))
				return nil
			}

			tasks := make([]syncer.Task, 0, len(names))
			for _, name := range names {
				task, err := c.cfg.Task(name)
				if err != nil {
					return err
				}
				if dryRun {
					task.DryRun = true
				}
				tasks = append(tasks, task)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := c.syncOptions(sniff, nil)
			result := &output.Result{}
			for _, task := range tasks {
				c.printVerbose("Running task %s", task.Name)
				report, err := syncer.Run(ctx, task, opts...)
				c.record(task, report, err)
				if err != nil {
					if len(result.Reports) > 0 {
						_ = c.render(result)
					}
					return err
				}
				result.Reports = append(result.Reports, *report)
			}
			return c.render(result)
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "report changes without writing any manifest")
	cmd.Flags().BoolVar(&sniff, "sniff", false, "guess the type of unknown files from their content")
	return cmd
}

// configFileHint names the config file for messages.
func configFileHint(c *cli) string {
	if c.cfg != nil && c.cfg.File != "" {
		return c.cfg.File
	}
	return "the config file ('manifestsync config path')"
}

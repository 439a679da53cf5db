package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/config"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/logging"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/output"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/syncer"
)

// skipConfig marks commands that run without loading the configuration.
const skipConfig = "skip-config"

// cli carries the state shared by every command. The configuration is
// loaded once, before the selected command runs.
type cli struct {
	cfgFile string
	verbose bool
	quiet   bool
	output  string

	cfg *config.Config

	out    io.Writer
	errOut io.Writer
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "manifestsync",
		Short: "Keep an XML export manifest in step with a directory",
		Long: `manifestsync reconciles the export/files/file records of an XML manifest
with the contents of a directory: records for vanished paths are removed and
new paths get a freshly generated record, inserted in listing order.

Examples:
  manifestsync sync --base ~/web --directory ~/web/system --xml-file ~/web/manifest.xml
  manifestsync ensure --base . --directory ./modules --xml-file manifest.xml --dry-run
  manifestsync run                 # run every task from the config file
  manifestsync check --base . --directory ./system --xml-file manifest.xml
  manifestsync show --xml-file manifest.xml --prefix system
  manifestsync history             # list previous runs`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default: ~/.config/manifestsync/config.yaml)")
	flags.StringVarP(&c.output, "output", "o", "", "output format: "+strings.Join(output.Available(), ", "))
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "debug output on stderr")
	flags.BoolVarP(&c.quiet, "quiet", "q", false, "minimal output")

	root.AddCommand(
		newSyncCmd(c, syncer.VariantSync),
		newSyncCmd(c, syncer.VariantEnsure),
		newRunCmd(c),
		newCheckCmd(c),
		newShowCmd(c),
		newHistoryCmd(c),
		newConfigCmd(c),
		newVersionCmd(c),
	)
	return root
}

// setup loads the configuration and starts logging.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipConfig] != "" {
		return nil
	}

	v, err := config.NewViper(c.cfgFile)
	if err != nil {
		return err
	}
	if err := v.BindPFlag("output", cmd.Root().PersistentFlags().Lookup("output")); err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	c.cfg = cfg

	logCfg, err := cfg.LogConfig(c.verbose)
	if err != nil {
		return err
	}
	logCfg.Console = c.errOut
	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	if cfg.File != "" {
		c.printVerbose("Using config file %s", cfg.File)
	}
	return nil
}

// Execute runs the root command with the process arguments.
func Execute() error {
	c := &cli{out: os.Stdout, errOut: os.Stderr}
	return execute(context.Background(), c, os.Args[1:])
}

func execute(ctx context.Context, c *cli, args []string) error {
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	err := root.ExecuteContext(ctx)
	_ = logging.Close()
	if err != nil {
		c.reportError(err)
	}
	return err
}

// reportError prints the failure of a command.
func (c *cli) reportError(err error) {
	var buildErr *syncer.BuildError
	if !errors.As(err, &buildErr) {
		c.printError("%v", err)
		return
	}
	if buildErr.Task != "" {
		fmt.Fprintf(c.errOut, "BUILD FAILED (%s): %v\n", buildErr.Task, buildErr.Err)
		return
	}
	fmt.Fprintf(c.errOut, "BUILD FAILED: %v\n", buildErr.Err)
}

// render writes r in the selected output format.
func (c *cli) render(r *output.Result) error {
	name := c.output
	if c.cfg != nil && name == "" {
		name = c.cfg.Output
	}
	if name == "" {
		name = config.DefaultOutput
	}

	formatter, err := output.Get(name)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, r); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = c.out.Write(buf.Bytes())
	return err
}

// printVerbose prints a message if verbose mode is enabled.
func (c *cli) printVerbose(format string, args ...interface{}) {
	if c.verbose && !c.quiet {
		fmt.Fprintf(c.errOut, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func (c *cli) printInfo(format string, args ...interface{}) {
	if !c.quiet {
		fmt.Fprintf(c.out, format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func (c *cli) printError(format string, args ...interface{}) {
	fmt.Fprintf(c.errOut, "Error: "+format+"\n", args...)
}

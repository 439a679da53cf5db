package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/config"
)

func newConfigCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage manifestsync configuration settings.

Configuration is loaded from:
  1. the file given with --config
  2. $XDG_CONFIG_HOME/manifestsync/config.yaml (if set)
  3. ~/.config/manifestsync/config.yaml

Environment variables override config file settings using the MANIFESTSYNC_ prefix:
  MANIFESTSYNC_VARIANT=ensure
  MANIFESTSYNC_OUTPUT=json
  MANIFESTSYNC_HISTORY_RETENTION_DAYS=30`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.runConfigShow()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "init",
		Short:       "Create a default configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(_ *cobra.Command, _ []string) error {
			path, created, err := config.WriteDefault()
			if err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}
			if !created {
				c.printInfo("Config file already exists: %s", path)
				return nil
			}
			c.printInfo("Created default config file: %s", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show the configuration file path",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(_ *cobra.Command, _ []string) error {
			path := c.cfgFile
			if path == "" {
				var err error
				if path, err = config.ConfigPath(); err != nil {
					return err
				}
			}
			fmt.Fprintln(c.out, path)

			if _, err := os.Stat(path); os.IsNotExist(err) {
				c.printVerbose("File does not exist (will use defaults)")
			}
			return nil
		},
	})
	return cmd
}

// runConfigShow prints the configuration as YAML.
func (c *cli) runConfigShow() error {
	if c.cfg.File != "" {
		fmt.Fprintf(c.out, "# Config file: %s\n", c.cfg.File)
	} else {
		fmt.Fprintln(c.out, "# Config file: (using defaults, no file found)")
	}

	data, err := yaml.Marshal(c.cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = c.out.Write(data)
	return err
}

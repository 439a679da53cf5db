package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build-time variables set by goreleaser or go build -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Long:        `Display the version, commit hash, and build date of manifestsync.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(c.out, "manifestsync %s\n", version)
			fmt.Fprintf(c.out, "  commit:  %s\n", commit)
			fmt.Fprintf(c.out, "  built:   %s\n", date)
			fmt.Fprintf(c.out, "  go:      %s\n", runtime.Version())
			fmt.Fprintf(c.out, "  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

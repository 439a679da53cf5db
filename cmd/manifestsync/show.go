package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/manifestsync/pkg/manifestsync/manifest"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/output"
	"github.com/jamesainslie/manifestsync/pkg/manifestsync/syncer"
)

func newShowCmd(c *cli) *cobra.Command {
	var (
		xmlFile string
		prefix  string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List the file records of a manifest",
		Long: `List the export/files/file records of a manifest. The pretty format draws
them as a tree; the other formats list one record per line.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if strings.TrimSpace(xmlFile) == "" {
				return fmt.Errorf("%w: xml-file", syncer.ErrMissingParameter)
			}
			doc, err := manifest.Load(xmlFile)
			if err != nil {
				return err
			}

			if prefix != "" {
				if prefix, err = syncer.NormalizePrefix(prefix); err != nil {
					return err
				}
			}
			return c.render(&output.Result{Source: xmlFile, Entries: entriesUnder(doc.Entries(), prefix)})
		},
	}

	cmd.Flags().StringVarP(&xmlFile, "xml-file", "x", "", "manifest to read (required)")
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "only show records at or below this destination")
	return cmd
}

// entriesUnder keeps the entries at or below prefix. The result is never nil.
func entriesUnder(entries []manifest.Entry, prefix string) []manifest.Entry {
	out := make([]manifest.Entry, 0, len(entries))
	for _, e := range entries {
		if prefix == "" || e.Destination == prefix || strings.HasPrefix(e.Destination, prefix+"/") {
			out = append(out, e)
		}
	}
	return out
}

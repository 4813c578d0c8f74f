package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"docqa/internal/ingest"
	"docqa/internal/util"

	"github.com/spf13/cobra"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Index one or more documents",
		Long: `Extract, chunk, embed and index documents.

PDF and DOCX files are recognised by suffix; anything else is read as UTF-8 text.

Examples:
  docqa ingest handbook.pdf
  docqa ingest notes/*.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make([]ingest.File, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				files = append(files, ingest.File{Filename: filepath.Base(path), Data: data})
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			outcomes, err := a.Indexer.IngestMany(cmd.Context(), files)
			if err != nil {
				return err
			}
			if opts.json {
				type row struct {
					ingest.Outcome
					Error string `json:"error,omitempty"`
				}
				rows := make([]row, 0, len(outcomes))
				for _, o := range outcomes {
					r := row{Outcome: o}
					if o.Err != nil {
						r.Error = o.Err.Error()
					}
					rows = append(rows, r)
				}
				if err := printJSON(cmd.OutOrStdout(), rows); err != nil {
					return err
				}
			} else {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "FILE\tDOCUMENT\tSTATUS")
				for _, o := range outcomes {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Filename, o.DocumentID, outcomeStatus(o.Err))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			failed := 0
			for _, o := range outcomes {
				if o.Err != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(outcomes))
			}
			return nil
		},
	}
}

func outcomeStatus(err error) string {
	var ixErr *util.IndexingError
	switch {
	case err == nil:
		return "indexed"
	case errors.As(err, &ixErr):
		return fmt.Sprintf("partial (through chunk %d): %v", ixErr.LastOrdinal, ixErr.Err)
	default:
		return "failed: " + err.Error()
	}
}

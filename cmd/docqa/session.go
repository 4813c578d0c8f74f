package main

import (
	"fmt"
	"time"

	"docqa/internal/util"

	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <session>",
		Short: "Show the most recent turns of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("limit must be positive, got %d", limit)
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			turns, err := a.Memory.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), turns)
			}
			out := cmd.OutOrStdout()
			if len(turns) == 0 {
				fmt.Fprintf(out, "No history for session %s\n", args[0])
				return nil
			}
			for _, t := range turns {
				fmt.Fprintf(out, "[%s] Q: %s\n", t.Timestamp.Format(time.RFC3339), t.Question)
				fmt.Fprintf(out, "    A: %s\n", util.Preview(t.Answer, 160))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum turns to show")
	return cmd
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session>",
		Short: "Delete every turn of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Memory.ClearSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s cleared\n", args[0])
			return nil
		},
	}
}

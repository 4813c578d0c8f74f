package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ans, err := a.Pipeline.Run(cmd.Context(), strings.Join(args, " "), session)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), ans)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Answer)
			if len(ans.Sources) > 0 {
				fmt.Fprintf(out, "\nSources: %s\n", strings.Join(ans.Sources, ", "))
			}
			if len(ans.Degraded) > 0 {
				fmt.Fprintf(out, "Warnings: %s\n", strings.Join(ans.Degraded, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "default", "Conversation session id")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jtvview/internal/guide"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <path>...",
		Short: "Print guides grouped by day",
		Long: `Print one or more guides. Each path may name the .ndx file, the .pdt
file or the common base path; a pair given together is shown once.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := false

			for i, target := range guide.Targets(args) {
				if i > 0 {
					fmt.Fprintln(out)
				}
				sess, err := guide.NewSession(a.cfg.Offset(), a.loc)
				if err != nil {
					return err
				}
				snap, err := sess.Open(target)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
					failed = true
					continue
				}
				renderText(out, sess.Title(), snap, a.cfg.DateLayout, a.cfg.TimeLayout, a.loc)
			}

			if failed {
				return errReported
			}
			return nil
		},
	}
}

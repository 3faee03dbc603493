package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jtvview/internal/guide"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <path>",
		Short: "Print a guide and print it again whenever its files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			sess, err := guide.NewSession(a.cfg.Offset(), a.loc)
			if err != nil {
				return err
			}
			snap, err := sess.Open(args[0])
			if err != nil {
				return err
			}
			renderText(out, sess.Title(), snap, a.cfg.DateLayout, a.cfg.TimeLayout, a.loc)

			err = sess.Watch(guide.DefaultSettle, func(snap *guide.Snapshot, err error) {
				fmt.Fprintln(out)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
					return
				}
				renderText(out, sess.Title(), snap, a.cfg.DateLayout, a.cfg.TimeLayout, a.loc)
			})
			if err != nil {
				return err
			}
			defer sess.StopWatch()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			<-ctx.Done()
			return nil
		},
	}
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jtvview/internal/archive"
	"jtvview/internal/jtv"
)

func newArchiveCmd(a *app) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Browse the SQLite archive of exported guides",
	}
	cmd.PersistentFlags().StringVar(&path, "db", "", "archive database (default archive_path from config)")

	open := func() (*archive.DB, error) {
		if path == "" {
			path = a.cfg.ArchivePath
		}
		return archive.Open(path)
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived guides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()

			guides, err := db.ListGuides(cmd.Context())
			if err != nil {
				return err
			}
			for _, g := range guides {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d programs\toffset %d s\timported %s\n",
					g.BasePath, g.Programs, g.OffsetSeconds, g.ImportedAt.In(a.loc).Format(time.DateTime))
			}
			return nil
		},
	}

	var (
		guidePath string
		days      int
	)
	searchCmd := &cobra.Command{
		Use:   "search [title]",
		Short: "Search archived programs by title",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()

			opts := archive.ListOptions{}
			if guidePath != "" {
				opts.BasePath = jtv.BasePath(guidePath)
			}
			if len(args) == 1 {
				opts.TitleFilter = args[0]
			}
			if days > 0 {
				opts.Since = time.Now()
				opts.Until = opts.Since.AddDate(0, 0, days)
			}

			programs, err := db.ListPrograms(cmd.Context(), opts)
			if err != nil {
				return err
			}
			for _, p := range programs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", p.Timestamp.In(a.loc).Format(a.cfg.DateLayout+" "+a.cfg.TimeLayout), p.Title)
			}
			return nil
		},
	}
	searchCmd.Flags().StringVar(&guidePath, "guide", "", "restrict to one guide base path")
	searchCmd.Flags().IntVar(&days, "days", 0, "only programs starting within this many days from now")

	cmd.AddCommand(listCmd, searchCmd)
	return cmd
}

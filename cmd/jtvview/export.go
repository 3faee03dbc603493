package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"jtvview/internal/archive"
	"jtvview/internal/guide"
	"jtvview/internal/ics"
	appLog "jtvview/internal/log"
)

const (
	formatICS    = "ics"
	formatJSON   = "json"
	formatSQLite = "sqlite"
)

// jsonGuide is the `export --format json` document for one guide.
type jsonGuide struct {
	Name          string    `json:"name"`
	BasePath      string    `json:"base_path"`
	OffsetSeconds int       `json:"offset_seconds"`
	Days          []jsonDay `json:"days"`
}

type jsonDay struct {
	Date     string        `json:"date"`
	Programs []jsonProgram `json:"programs"`
}

type jsonProgram struct {
	Start time.Time `json:"start"`
	Title string    `json:"title"`
}

func newExportCmd(a *app) *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export <path>...",
		Short: "Export guides as iCalendar, JSON or into the SQLite archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := guide.Targets(args)

			snaps := make([]*guide.Snapshot, 0, len(targets))
			for _, target := range targets {
				sess, err := guide.NewSession(a.cfg.Offset(), a.loc)
				if err != nil {
					return err
				}
				snap, err := sess.Open(target)
				if err != nil {
					return err
				}
				snaps = append(snaps, snap)
			}

			switch format {
			case formatSQLite:
				if out == "" {
					out = a.cfg.ArchivePath
				}
				return exportArchive(cmd, out, snaps)
			case formatICS, formatJSON:
				return withOutput(cmd, out, func(w io.Writer) error {
					if format == formatICS {
						return exportICS(w, snaps)
					}
					return exportJSON(w, snaps)
				})
			default:
				return fmt.Errorf("unknown format %q (want ics, json or sqlite)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatICS, "output format: ics, json, sqlite")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout; archive_path for sqlite)")
	return cmd
}

// withOutput runs fn against path, or stdout when path is empty.
func withOutput(cmd *cobra.Command, path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func exportICS(w io.Writer, snaps []*guide.Snapshot) error {
	if len(snaps) != 1 {
		return errors.New("ics export takes exactly one guide")
	}
	snap := snaps[0]
	return ics.Export(w, snap.Entries, ics.ExportOptions{Name: ics.NameFor(snap.BasePath)})
}

func exportJSON(w io.Writer, snaps []*guide.Snapshot) error {
	docs := make([]jsonGuide, 0, len(snaps))
	for _, snap := range snaps {
		doc := jsonGuide{
			Name:          filepath.Base(snap.BasePath),
			BasePath:      snap.BasePath,
			OffsetSeconds: snap.OffsetSeconds,
			Days:          make([]jsonDay, 0, len(snap.Groups)),
		}
		for _, g := range snap.Groups {
			day := jsonDay{Date: g.Date.Format(time.DateOnly), Programs: make([]jsonProgram, 0, len(g.Entries))}
			for _, e := range g.Entries {
				day.Programs = append(day.Programs, jsonProgram{Start: e.Timestamp, Title: e.Title})
			}
			doc.Days = append(doc.Days, day)
		}
		docs = append(docs, doc)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}

func exportArchive(cmd *cobra.Command, path string, snaps []*guide.Snapshot) error {
	db, err := archive.Open(path)
	if err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	defer db.Close()

	for _, snap := range snaps {
		id, err := db.SaveGuide(cmd.Context(), snap.BasePath, snap.OffsetSeconds, snap.Entries)
		if err != nil {
			return fmt.Errorf("archive %s: %w", snap.BasePath, err)
		}
		appLog.Info("guide archived", "archive", path, "base", snap.BasePath, "guide_id", id, "entries", len(snap.Entries))
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d programs archived\n", filepath.Base(snap.BasePath), len(snap.Entries))
	}
	return nil
}

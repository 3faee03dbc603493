// Package archive keeps decoded program guides in a SQLite database so that
// past schedules stay searchable after the JTV files are replaced.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"jtvview/internal/model"
)

type DB struct {
	sql *sql.DB
}

// Guide describes one archived guide.
type Guide struct {
	ID            int64
	BasePath      string
	Name          string
	OffsetSeconds int
	ImportedAt    time.Time
	Programs      int
}

// uriPath escapes the characters SQLite URI filenames give a meaning to.
var uriPath = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")

func Open(path string) (*DB, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	dsn := "file:" + uriPath.Replace(abs) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS guides (
  id             INTEGER PRIMARY KEY,
  base_path      TEXT NOT NULL UNIQUE,
  name           TEXT NOT NULL,
  offset_seconds INTEGER NOT NULL,
  imported_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS programs (
  guide_id  INTEGER NOT NULL REFERENCES guides(id) ON DELETE CASCADE,
  seq       INTEGER NOT NULL,
  starts_at INTEGER NOT NULL,
  title     TEXT NOT NULL,
  PRIMARY KEY (guide_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_programs_start ON programs(starts_at);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SaveGuide replaces everything stored for basePath with entries. Guides
// are keyed by absolute path.
func (d *DB) SaveGuide(ctx context.Context, basePath string, offsetSeconds int, entries []model.ProgramEntry) (id int64, err error) {
	if basePath == "" {
		return 0, errors.New("archive: empty base path")
	}
	if basePath, err = filepath.Abs(basePath); err != nil {
		return 0, err
	}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC().UnixMilli()
	err = tx.QueryRowContext(ctx, `
INSERT INTO guides(base_path, name, offset_seconds, imported_at) VALUES(?,?,?,?)
ON CONFLICT(base_path) DO UPDATE SET offset_seconds = excluded.offset_seconds, imported_at = excluded.imported_at
RETURNING id`, basePath, filepath.Base(basePath), offsetSeconds, now).Scan(&id)
	if err != nil {
		return 0, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM programs WHERE guide_id = ?`, id); err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO programs(guide_id, seq, starts_at, title) VALUES(?,?,?,?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err = stmt.ExecContext(ctx, id, i+1, e.Timestamp.UnixMilli(), e.Title); err != nil {
			return 0, fmt.Errorf("archive: insert program %d: %w", i+1, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// ListGuides returns all archived guides ordered by base path.
func (d *DB) ListGuides(ctx context.Context) ([]Guide, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT g.id, g.base_path, g.name, g.offset_seconds, g.imported_at, COUNT(p.seq)
FROM guides g LEFT JOIN programs p ON p.guide_id = g.id
GROUP BY g.id ORDER BY g.base_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Guide
	for rows.Next() {
		var (
			g        Guide
			imported int64
		)
		if err := rows.Scan(&g.ID, &g.BasePath, &g.Name, &g.OffsetSeconds, &imported, &g.Programs); err != nil {
			return nil, err
		}
		g.ImportedAt = time.UnixMilli(imported).UTC()
		out = append(out, g)
	}
	return out, rows.Err()
}

// ListOptions controls selection when listing programs.
type ListOptions struct {
	// BasePath restricts results to one guide. Relative paths are resolved
	// against the working directory.
	BasePath string
	// Since and Until bound the start time, [Since, Until).
	Since time.Time
	Until time.Time
	// TitleFilter is a case-sensitive substring match on the title.
	TitleFilter string
}

// ListPrograms returns archived programs in guide order.
func (d *DB) ListPrograms(ctx context.Context, opts ListOptions) ([]model.ProgramEntry, error) {
	where := "WHERE 1=1"
	args := []any{}
	if opts.BasePath != "" {
		base, err := filepath.Abs(opts.BasePath)
		if err != nil {
			return nil, err
		}
		where += " AND g.base_path = ?"
		args = append(args, base)
	}
	if !opts.Since.IsZero() {
		where += " AND p.starts_at >= ?"
		args = append(args, opts.Since.UnixMilli())
	}
	if !opts.Until.IsZero() {
		where += " AND p.starts_at < ?"
		args = append(args, opts.Until.UnixMilli())
	}
	if opts.TitleFilter != "" {
		where += " AND instr(p.title, ?) > 0"
		args = append(args, opts.TitleFilter)
	}

	q := "SELECT p.starts_at, p.title FROM programs p JOIN guides g ON g.id = p.guide_id " + where + " ORDER BY g.base_path, p.seq"
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProgramEntry
	for rows.Next() {
		var (
			ms    int64
			title string
		)
		if err := rows.Scan(&ms, &title); err != nil {
			return nil, err
		}
		out = append(out, model.ProgramEntry{Timestamp: time.UnixMilli(ms).UTC(), Title: title})
	}
	return out, rows.Err()
}

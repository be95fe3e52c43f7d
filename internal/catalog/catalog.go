// Package catalog keeps a SQLite record of scanned model files keyed by
// path and modification time.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS models (
	path        TEXT PRIMARY KEY,
	format      TEXT NOT NULL DEFAULT '',
	mod_time    INTEGER NOT NULL,
	size        INTEGER NOT NULL DEFAULT 0,
	header      TEXT NOT NULL DEFAULT '',
	triangles   INTEGER NOT NULL DEFAULT 0,
	vertices    INTEGER NOT NULL DEFAULT 0,
	min_x       REAL NOT NULL DEFAULT 0,
	min_y       REAL NOT NULL DEFAULT 0,
	min_z       REAL NOT NULL DEFAULT 0,
	max_x       REAL NOT NULL DEFAULT 0,
	max_y       REAL NOT NULL DEFAULT 0,
	max_z       REAL NOT NULL DEFAULT 0,
	degenerate  INTEGER NOT NULL DEFAULT 0,
	parse_ms    INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	scanned_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_models_format ON models(format);
`

// ErrNotFound is returned when a path has no catalog entry.
var ErrNotFound = errors.New("catalog: entry not found")

// Entry is one cataloged model file. Files that failed to parse are kept
// with Error set so unchanged broken files are not parsed again.
type Entry struct {
	Path       string     `json:"path"`
	Format     string     `json:"format"`
	ModTime    time.Time  `json:"mod_time"`
	Size       int64      `json:"size"`
	Header     string     `json:"header,omitempty"`
	Triangles  int        `json:"triangles"`
	Vertices   int        `json:"vertices"`
	Min        [3]float64 `json:"min"`
	Max        [3]float64 `json:"max"`
	Degenerate int        `json:"degenerate"`
	ParseTime  Millis     `json:"parse_ms"`
	Error      string     `json:"error,omitempty"`
	ScannedAt  time.Time  `json:"scanned_at"`
}

// Millis is a duration stored and serialized in milliseconds.
type Millis int64

// Duration converts m to a time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

// Catalog defines the catalog operations. Consumers should depend on this
// interface rather than the concrete *DB type.
type Catalog interface {
	Upsert(e Entry) error
	Get(path string) (*Entry, error)
	List(format string, limit, offset int) ([]Entry, int, error)
	Delete(path string) error
	ModTimes() (map[string]time.Time, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)

// DB wraps a sql.DB with catalog operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Upsert inserts or replaces the entry for e.Path.
func (db *DB) Upsert(e Entry) error {
	if e.ScannedAt.IsZero() {
		e.ScannedAt = time.Now()
	}
	_, err := db.conn.Exec(`
		INSERT INTO models (path, format, mod_time, size, header, triangles, vertices,
			min_x, min_y, min_z, max_x, max_y, max_z, degenerate, parse_ms, error, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			format     = excluded.format,
			mod_time   = excluded.mod_time,
			size       = excluded.size,
			header     = excluded.header,
			triangles  = excluded.triangles,
			vertices   = excluded.vertices,
			min_x      = excluded.min_x,
			min_y      = excluded.min_y,
			min_z      = excluded.min_z,
			max_x      = excluded.max_x,
			max_y      = excluded.max_y,
			max_z      = excluded.max_z,
			degenerate = excluded.degenerate,
			parse_ms   = excluded.parse_ms,
			error      = excluded.error,
			scanned_at = excluded.scanned_at
	`, e.Path, e.Format, e.ModTime.UnixNano(), e.Size, e.Header, e.Triangles, e.Vertices,
		e.Min[0], e.Min[1], e.Min[2], e.Max[0], e.Max[1], e.Max[2],
		e.Degenerate, int64(e.ParseTime), e.Error, e.ScannedAt.UTC())
	if err != nil {
		return fmt.Errorf("catalog: upsert %s: %w", e.Path, err)
	}
	return nil
}

const selectColumns = `path, format, mod_time, size, header, triangles, vertices,
	min_x, min_y, min_z, max_x, max_y, max_z, degenerate, parse_ms, error, scanned_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var e Entry
	var modTime, parseMS int64
	err := s.Scan(&e.Path, &e.Format, &modTime, &e.Size, &e.Header, &e.Triangles, &e.Vertices,
		&e.Min[0], &e.Min[1], &e.Min[2], &e.Max[0], &e.Max[1], &e.Max[2],
		&e.Degenerate, &parseMS, &e.Error, &e.ScannedAt)
	if err != nil {
		return e, err
	}
	e.ModTime = time.Unix(0, modTime)
	e.ParseTime = Millis(parseMS)
	return e, nil
}

// Get returns the entry for path, or ErrNotFound.
func (db *DB) Get(path string) (*Entry, error) {
	row := db.conn.QueryRow(`SELECT `+selectColumns+` FROM models WHERE path = ?`, path)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get %s: %w", path, err)
	}
	return &e, nil
}

// List returns entries ordered by path together with the total count.
// An empty format lists every format. A limit of zero or less returns
// every entry.
func (db *DB) List(format string, limit, offset int) ([]Entry, int, error) {
	where := ""
	args := []any{}
	if format != "" {
		where = ` WHERE format = ?`
		args = append(args, format)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM models`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count: %w", err)
	}

	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	rows, err := db.conn.Query(`SELECT `+selectColumns+` FROM models`+where+` ORDER BY path LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// Delete removes the entry for path. Deleting a missing path is not an
// error.
func (db *DB) Delete(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM models WHERE path = ?`, path); err != nil {
		return fmt.Errorf("catalog: delete %s: %w", path, err)
	}
	return nil
}

// ModTimes returns the recorded modification time of every entry.
func (db *DB) ModTimes() (map[string]time.Time, error) {
	rows, err := db.conn.Query(`SELECT path, mod_time FROM models`)
	if err != nil {
		return nil, fmt.Errorf("catalog: mod times: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var p string
		var ns int64
		if err := rows.Scan(&p, &ns); err != nil {
			return nil, err
		}
		out[p] = time.Unix(0, ns)
	}
	return out, rows.Err()
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"

	"suppliers/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL UNIQUE,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS record_failures (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  source TEXT NOT NULL,
  lineNo INTEGER NOT NULL,
  rawLine TEXT NOT NULL,
  error TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_record_failures_traceId ON record_failures(traceId);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

var reTableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TableSink is a SQLite table laid out as internal.TabularSchema.
type TableSink struct {
	db    *DB
	table string
}

func (d *DB) TableSink(table string) (*TableSink, error) {
	if !reTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	return &TableSink{db: d, table: table}, nil
}

func (t *TableSink) createStatement() string {
	cols := make([]string, 0, len(internal.TabularSchema))
	for _, f := range internal.TabularSchema {
		cols = append(cols, fmt.Sprintf("  %s %s", f.Name, sqliteType(f.Type)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", t.table, strings.Join(cols, ",\n"))
}

func columnList() string {
	names := make([]string, 0, len(internal.TabularSchema))
	for _, f := range internal.TabularSchema {
		names = append(names, f.Name)
	}
	return strings.Join(names, ", ")
}

func sqliteType(ft internal.FieldType) string {
	if ft == internal.FieldInteger {
		return "INTEGER"
	}
	return "TEXT"
}

// ReplaceRows creates the table if needed and swaps its contents for rows in a
// single transaction.
func (t *TableSink) ReplaceRows(ctx context.Context, rows []internal.TabularRow) error {
	tx, err := t.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, t.createStatement()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", t.table)); err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(internal.TabularSchema)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.table, columnList(), placeholders))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.Values()...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListRows returns the table contents ordered by company name. A table that
// was never written yields no rows.
func (t *TableSink) ListRows(ctx context.Context) ([]internal.TabularRow, error) {
	if _, err := t.db.conn.ExecContext(ctx, t.createStatement()); err != nil {
		return nil, err
	}
	rows, err := t.db.conn.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY company_name, rowid", columnList(), t.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.TabularRow
	for rows.Next() {
		var r internal.TabularRow
		if err := rows.Scan(
			&r.CompanyName, &r.Location, &r.Country, &r.Industry,
			&r.Website, &r.Size, &r.CEO, &r.LatestNews,
			&r.LinkedinURL, &r.PointOfContact, &r.ID, &r.Specialties,
			&r.Founded, &r.LoadDate, &r.State, &r.City,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) InsertRun(traceID string, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, timingsJson, countsJson) VALUES (?, ?, ?)`, traceID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) ListRuns(limit int) ([]internal.RunRow, error) {
	rows, err := d.conn.Query(`
SELECT id, traceId, createdAt, timingsJson, countsJson
FROM runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		var row internal.RunRow
		var timingsJSON, countsJSON string
		if err := rows.Scan(&row.ID, &row.TraceID, &row.CreatedAt, &timingsJSON, &countsJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(timingsJSON), &row.Timings)
		_ = json.Unmarshal([]byte(countsJSON), &row.Counts)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) InsertRecordFailures(traceID string, failures []internal.RecordFailure) error {
	if len(failures) == 0 {
		return nil
	}
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT INTO record_failures (traceId, source, lineNo, rawLine, error) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range failures {
		if _, err := stmt.Exec(traceID, f.Source, f.LineNo, f.RawLine, f.Error); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) ListRecordFailures(traceID string) ([]internal.RecordFailure, error) {
	rows, err := d.conn.Query(`
SELECT source, lineNo, rawLine, error FROM record_failures WHERE traceId = ? ORDER BY source, lineNo
`, traceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RecordFailure
	for rows.Next() {
		var f internal.RecordFailure
		if err := rows.Scan(&f.Source, &f.LineNo, &f.RawLine, &f.Error); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

package failure_ledger

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteHistory keeps every recorded failure, including those cleared from the
// ledger file by a later successful connect.
type SQLiteHistory struct {
	db     *sql.DB
	sensor string
}

// NewSQLiteHistory opens the archive. sensor tags each row.
func NewSQLiteHistory(dsn, sensor string) (*SQLiteHistory, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:failures.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &SQLiteHistory{db: db, sensor: sensor}, nil
}

// Init creates the schema.
func (h *SQLiteHistory) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS connectivity_failures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sensor TEXT NOT NULL,
			connfail_time TEXT NOT NULL,
			connfail_code INTEGER NOT NULL,
			connfail_info TEXT NOT NULL,
			connfail_order INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_connectivity_failures_time ON connectivity_failures(connfail_time)`,
	}
	for _, stmt := range stmts {
		if _, err := h.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Append stores one record.
func (h *SQLiteHistory) Append(ctx context.Context, rec Record) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO connectivity_failures (sensor, connfail_time, connfail_code, connfail_info, connfail_order)
		VALUES (?, ?, ?, ?, ?)`,
		h.sensor,
		rec.Time,
		rec.Code,
		rec.Info,
		rec.Order,
	)
	return err
}

// Recent returns up to limit records, newest first.
func (h *SQLiteHistory) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT connfail_time, connfail_code, connfail_info, connfail_order
		FROM connectivity_failures ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Time, &rec.Code, &rec.Info, &rec.Order); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (h *SQLiteHistory) Close() error {
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}

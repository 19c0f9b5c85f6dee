// Package storage provides persistent storage for parsed reservation texts:
// a local SQLite parse log, PostgreSQL records and reference tables, and
// ClickHouse parse events.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"gds_parser/internal/diag"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ParseLogEntry is a stored parse with its raw text and outcome.
type ParseLogEntry struct {
	ID              int64
	Timestamp       time.Time
	Dialect         string
	MessageID       int64
	Source          string
	ReservationCode string
	FlightKeys      string
	RawText         string
	ParsedJSON      string
	Warnings        string // Comma-separated category:value pairs.
	Dropped         int
	Error           string
}

// SQLiteDB wraps a SQLite database connection for the parse log.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite parse log at the given path.
func OpenSQLite(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (d *SQLiteDB) Close() error {
	return d.db.Close()
}

// createSQLiteSchema creates the parse log tables and indices.
func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS parses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		dialect TEXT NOT NULL,
		message_id INTEGER,
		source TEXT,
		reservation_code TEXT,
		flight_keys TEXT,
		raw_text TEXT NOT NULL,
		parsed_json TEXT NOT NULL,
		warnings TEXT,
		dropped INTEGER DEFAULT 0,
		error TEXT,
		created_at TEXT DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_parses_dialect ON parses(dialect);
	CREATE INDEX IF NOT EXISTS idx_parses_code ON parses(reservation_code);
	CREATE INDEX IF NOT EXISTS idx_parses_timestamp ON parses(timestamp);

	-- FTS5 virtual table for full-text search on raw reservation text.
	CREATE VIRTUAL TABLE IF NOT EXISTS parses_fts USING fts5(
		raw_text,
		content='parses',
		content_rowid='id'
	);

	-- Triggers to keep FTS index in sync.
	CREATE TRIGGER IF NOT EXISTS parses_ai AFTER INSERT ON parses BEGIN
		INSERT INTO parses_fts(rowid, raw_text) VALUES (new.id, new.raw_text);
	END;

	CREATE TRIGGER IF NOT EXISTS parses_ad AFTER DELETE ON parses BEGIN
		INSERT INTO parses_fts(parses_fts, rowid, raw_text) VALUES('delete', old.id, old.raw_text);
	END;
	`

	_, err := db.Exec(schema)
	return err
}

// FormatWarnings flattens warnings into the stored category:value list.
func FormatWarnings(ws []diag.Warning) string {
	parts := make([]string, 0, len(ws))
	for _, w := range ws {
		parts = append(parts, string(w.Category)+":"+w.Value)
	}
	return strings.Join(parts, ",")
}

// InsertParams contains the parameters for logging a parse.
type InsertParams struct {
	Timestamp       time.Time
	Dialect         string
	MessageID       int64
	Source          string
	ReservationCode string
	FlightKeys      []string
	RawText         string
	ParsedData      interface{}
	Warnings        []diag.Warning
	Dropped         int
	Error           string
}

// Insert stores a parse in the log.
func (d *SQLiteDB) Insert(p InsertParams) (int64, error) {
	parsedJSON, err := json.Marshal(p.ParsedData)
	if err != nil {
		return 0, fmt.Errorf("marshal parsed data: %w", err)
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}

	result, err := d.db.Exec(`
		INSERT INTO parses (timestamp, dialect, message_id, source, reservation_code, flight_keys, raw_text, parsed_json, warnings, dropped, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Timestamp.UTC().Format(time.RFC3339), p.Dialect, p.MessageID, p.Source, p.ReservationCode,
		strings.Join(p.FlightKeys, ","), p.RawText, string(parsedJSON), FormatWarnings(p.Warnings), p.Dropped, p.Error)
	if err != nil {
		return 0, fmt.Errorf("insert parse: %w", err)
	}

	return result.LastInsertId()
}

// QueryParams contains filtering options for querying the parse log.
type QueryParams struct {
	ID              int64  // Filter by specific entry ID.
	Dialect         string // Filter by dialect (exact match).
	ReservationCode string // Filter by reservation code (exact match).
	Flight          string // Filter by flight key (LIKE match).
	Warning         string // Filter by warning category or value (LIKE match).
	Failed          bool   // Only show failed parses.
	FullText        string // FTS5 full-text search on raw_text.
	Limit           int    // Max results (default 100).
	Offset          int    // Pagination offset.
	OrderDesc       bool   // Sort newest first.
}

const parseColumns = `p.id, p.timestamp, p.dialect, p.message_id, p.source, p.reservation_code,
	p.flight_keys, p.raw_text, p.parsed_json, p.warnings, p.dropped, p.error`

// Query retrieves log entries matching the given parameters.
func (d *SQLiteDB) Query(p QueryParams) ([]ParseLogEntry, error) {
	var conditions []string
	var args []interface{}

	if p.ID != 0 {
		conditions = append(conditions, "p.id = ?")
		args = append(args, p.ID)
	}
	if p.Dialect != "" {
		conditions = append(conditions, "p.dialect = ?")
		args = append(args, p.Dialect)
	}
	if p.ReservationCode != "" {
		conditions = append(conditions, "p.reservation_code = ?")
		args = append(args, p.ReservationCode)
	}
	if p.Flight != "" {
		conditions = append(conditions, "p.flight_keys LIKE ?")
		args = append(args, "%"+p.Flight+"%")
	}
	if p.Warning != "" {
		conditions = append(conditions, "p.warnings LIKE ?")
		args = append(args, "%"+p.Warning+"%")
	}
	if p.Failed {
		conditions = append(conditions, "p.error != '' AND p.error IS NOT NULL")
	}

	// Handle FTS5 search - requires a JOIN with the FTS table.
	query := "SELECT " + parseColumns + " FROM parses p"
	if p.FullText != "" {
		query += " JOIN parses_fts ON p.id = parses_fts.rowid"
		conditions = append([]string{"parses_fts MATCH ?"}, conditions...)
		args = append([]interface{}{p.FullText}, args...)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	direction := "ASC"
	if p.OrderDesc {
		direction = "DESC"
	}
	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" ORDER BY p.id %s LIMIT %d OFFSET %d", direction, limit, p.Offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query parses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []ParseLogEntry
	for rows.Next() {
		var e ParseLogEntry
		var ts string
		var messageID, dropped sql.NullInt64
		var source, code, keys, warnings, errText sql.NullString

		err := rows.Scan(&e.ID, &ts, &e.Dialect, &messageID, &source, &code,
			&keys, &e.RawText, &e.ParsedJSON, &warnings, &dropped, &errText)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		e.MessageID = messageID.Int64
		e.Source = source.String
		e.ReservationCode = code.String
		e.FlightKeys = keys.String
		e.Warnings = warnings.String
		e.Dropped = int(dropped.Int64)
		e.Error = errText.String

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// GetByID returns a single log entry.
func (d *SQLiteDB) GetByID(id int64) (*ParseLogEntry, error) {
	entries, err := d.Query(QueryParams{ID: id, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return &entries[0], nil
}

// LogStats holds aggregate statistics about the parse log.
type LogStats struct {
	TotalParses  int
	Failed       int
	ByDialect    map[string]int
	WarningCount map[string]int // Keyed by category:value.
}

// GetStats returns statistics about the logged parses.
func (d *SQLiteDB) GetStats() (*LogStats, error) {
	stats := &LogStats{
		ByDialect:    make(map[string]int),
		WarningCount: make(map[string]int),
	}

	row := d.db.QueryRow("SELECT COUNT(*) FROM parses")
	if err := row.Scan(&stats.TotalParses); err != nil {
		return nil, err
	}

	row = d.db.QueryRow("SELECT COUNT(*) FROM parses WHERE error != '' AND error IS NOT NULL")
	if err := row.Scan(&stats.Failed); err != nil {
		return nil, err
	}

	rows, err := d.db.Query("SELECT dialect, COUNT(*) FROM parses GROUP BY dialect")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var dialect string
		var count int
		if err := rows.Scan(&dialect, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.ByDialect[dialect] = count
	}
	_ = rows.Close()

	// Warnings are stored comma-separated; count them per entry.
	rows, err = d.db.Query("SELECT warnings FROM parses WHERE warnings != '' AND warnings IS NOT NULL")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var ws string
		if err := rows.Scan(&ws); err != nil {
			_ = rows.Close()
			return nil, err
		}
		for _, w := range strings.Split(ws, ",") {
			w = strings.TrimSpace(w)
			if w != "" {
				stats.WarningCount[w]++
			}
		}
	}
	_ = rows.Close()

	return stats, nil
}

// Distinct returns distinct values for a given column.
func (d *SQLiteDB) Distinct(column string) ([]string, error) {
	// Validate column name to prevent SQL injection.
	validColumns := map[string]bool{
		"dialect":          true,
		"source":           true,
		"reservation_code": true,
	}
	if !validColumns[column] {
		return nil, fmt.Errorf("invalid column: %s", column)
	}

	rows, err := d.db.Query(fmt.Sprintf("SELECT DISTINCT %s FROM parses WHERE %s IS NOT NULL AND %s != '' ORDER BY %s", column, column, column, column))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"gds_parser/internal/extractor"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for parse analytics.
type ClickHouseDB struct {
	conn driver.Conn
}

// Conn returns the underlying ClickHouse connection for direct queries.
func (d *ClickHouseDB) Conn() driver.Conn {
	return d.conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	q := `CREATE TABLE IF NOT EXISTS parse_events (
		id                  UInt64,
		timestamp           DateTime64(3),
		dialect             LowCardinality(String),
		source              LowCardinality(String),
		reservation_code    String,
		flight_keys         Array(LowCardinality(String)),
		flights             UInt16,
		passengers          UInt16,
		scanned             UInt32,
		matched             UInt32,
		warnings            Array(LowCardinality(String)),
		failed              UInt8,
		error               String,
		created_at          DateTime64(3) DEFAULT now64(3)
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (dialect, timestamp, id)
	SETTINGS index_granularity = 8192`

	if err := d.conn.Exec(ctx, q); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// ParseEvent is one parse outcome as recorded for analytics.
type ParseEvent struct {
	ID              uint64
	Timestamp       time.Time
	Dialect         string
	Source          string
	ReservationCode string
	FlightKeys      []string
	Flights         uint16
	Passengers      uint16
	Scanned         uint32
	Matched         uint32
	Warnings        []string // category:value
	Failed          bool
	Error           string
}

// EventFromExtraction summarises an extraction. ext may be nil when the
// parse failed; err is then recorded on the event.
func EventFromExtraction(id uint64, ts time.Time, dialect string, ext *extractor.Extraction, err error) ParseEvent {
	ev := ParseEvent{ID: id, Timestamp: ts, Dialect: dialect}
	if err != nil {
		ev.Failed = true
		ev.Error = err.Error()
	}
	if ext == nil {
		return ev
	}

	ev.Dialect = string(ext.Dialect)
	ev.Source = ext.Source
	ev.ReservationCode = ext.ReservationCode
	ev.FlightKeys = ext.FlightKeys()
	ev.Flights = uint16(len(ext.Flights))
	ev.Passengers = uint16(len(ext.Passengers))
	for _, s := range ext.Stats {
		ev.Scanned += uint32(s.Scanned)
		ev.Matched += uint32(s.Matched)
	}
	for _, w := range ext.Warnings {
		ev.Warnings = append(ev.Warnings, string(w.Category)+":"+w.Value)
	}
	return ev
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

const insertEventSQL = `INSERT INTO parse_events (id, timestamp, dialect, source, reservation_code, flight_keys, flights, passengers, scanned, matched, warnings, failed, error)`

// Insert stores a single parse event.
func (d *ClickHouseDB) Insert(ctx context.Context, ev ParseEvent) error {
	return d.InsertBatch(ctx, []ParseEvent{ev})
}

// InsertBatch stores multiple parse events efficiently.
func (d *ClickHouseDB) InsertBatch(ctx context.Context, events []ParseEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, insertEventSQL)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, ev := range events {
		err = batch.Append(ev.ID, ev.Timestamp, ev.Dialect, ev.Source, ev.ReservationCode, nonNil(ev.FlightKeys),
			ev.Flights, ev.Passengers, ev.Scanned, ev.Matched, nonNil(ev.Warnings), boolToUInt8(ev.Failed), ev.Error)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// CHQueryParams contains filtering options for querying parse events.
type CHQueryParams struct {
	ID      uint64
	Dialect string
	Flight  string // Exact flight key, e.g. LH9694.
	Warning string // Exact category:value.
	Failed  bool
	Limit   int
	Offset  int
}

// Query retrieves parse events matching the given parameters, newest first.
func (d *ClickHouseDB) Query(ctx context.Context, p CHQueryParams) ([]ParseEvent, error) {
	var conditions []string
	var args []interface{}

	if p.ID != 0 {
		conditions = append(conditions, "id = ?")
		args = append(args, p.ID)
	}
	if p.Dialect != "" {
		conditions = append(conditions, "dialect = ?")
		args = append(args, p.Dialect)
	}
	if p.Flight != "" {
		conditions = append(conditions, "has(flight_keys, ?)")
		args = append(args, p.Flight)
	}
	if p.Warning != "" {
		conditions = append(conditions, "has(warnings, ?)")
		args = append(args, p.Warning)
	}
	if p.Failed {
		conditions = append(conditions, "failed = 1")
	}

	query := `SELECT id, timestamp, dialect, source, reservation_code, flight_keys, flights, passengers, scanned, matched, warnings, failed, error FROM parse_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" ORDER BY timestamp DESC, id DESC LIMIT %d OFFSET %d", limit, p.Offset)

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query parse events: %w", err)
	}
	defer rows.Close()

	var events []ParseEvent
	for rows.Next() {
		var ev ParseEvent
		var failed uint8
		err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.Dialect, &ev.Source, &ev.ReservationCode, &ev.FlightKeys,
			&ev.Flights, &ev.Passengers, &ev.Scanned, &ev.Matched, &ev.Warnings, &failed, &ev.Error)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ev.Failed = failed == 1
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return events, nil
}

// CHStats contains aggregate statistics about parse events.
type CHStats struct {
	TotalParses uint64
	Failed      uint64
	Dropped     uint64
	ByDialect   map[string]uint64
	TopWarnings map[string]uint64
}

// GetStats returns statistics about parse events.
func (d *ClickHouseDB) GetStats(ctx context.Context) (*CHStats, error) {
	stats := &CHStats{
		ByDialect:   make(map[string]uint64),
		TopWarnings: make(map[string]uint64),
	}

	row := d.conn.QueryRow(ctx, "SELECT count(), countIf(failed = 1), sum(scanned - matched) FROM parse_events")
	if err := row.Scan(&stats.TotalParses, &stats.Failed, &stats.Dropped); err != nil {
		return nil, err
	}

	if err := d.countInto(ctx, stats.ByDialect,
		"SELECT dialect, count() FROM parse_events GROUP BY dialect"); err != nil {
		return nil, fmt.Errorf("dialect stats: %w", err)
	}
	if err := d.countInto(ctx, stats.TopWarnings,
		"SELECT w, count() FROM parse_events ARRAY JOIN warnings AS w GROUP BY w ORDER BY count() DESC LIMIT 20"); err != nil {
		return nil, fmt.Errorf("warning stats: %w", err)
	}

	return stats, nil
}

func (d *ClickHouseDB) countInto(ctx context.Context, out map[string]uint64, query string) error {
	rows, err := d.conn.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count uint64
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		out[key] = count
	}
	return rows.Err()
}

// MaxID returns the maximum event ID in the table.
func (d *ClickHouseDB) MaxID(ctx context.Context) (uint64, error) {
	var maxID uint64
	row := d.conn.QueryRow(ctx, "SELECT max(id) FROM parse_events")
	if err := row.Scan(&maxID); err != nil {
		return 0, err
	}
	return maxID, nil
}

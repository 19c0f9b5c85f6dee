package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"gds_parser/internal/records"
	"gds_parser/internal/reference"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB stores offers, sales and their records, and serves the
// reference catalog.
type PostgresDB struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// Pool returns the underlying connection pool.
func (d *PostgresDB) Pool() *pgxpool.Pool {
	return d.pool
}

// referenceTables maps each reference kind to its table.
var referenceTables = map[reference.Kind]string{
	reference.KindAirline:      "airlines",
	reference.KindLocation:     "locations",
	reference.KindFoodType:     "food_types",
	reference.KindAirplaneType: "airplane_types",
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	-- Reference data
	CREATE TABLE IF NOT EXISTS airlines (
		id      BIGSERIAL PRIMARY KEY,
		code    TEXT NOT NULL UNIQUE,
		name    TEXT
	);

	CREATE TABLE IF NOT EXISTS locations (
		id      BIGSERIAL PRIMARY KEY,
		code    TEXT NOT NULL UNIQUE,
		name    TEXT
	);

	CREATE TABLE IF NOT EXISTS food_types (
		id      BIGSERIAL PRIMARY KEY,
		code    TEXT NOT NULL UNIQUE,
		name    TEXT
	);

	CREATE TABLE IF NOT EXISTS airplane_types (
		id      BIGSERIAL PRIMARY KEY,
		code    TEXT NOT NULL UNIQUE,
		name    TEXT
	);

	-- Parsed reservations
	CREATE TABLE IF NOT EXISTS offers (
		id          BIGSERIAL PRIMARY KEY,
		code        TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS sales (
		id                  BIGSERIAL PRIMARY KEY,
		code                TEXT NOT NULL,
		reservation_code    TEXT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_sales_reservation_code ON sales(reservation_code);

	CREATE TABLE IF NOT EXISTS offer_flights (
		id                  BIGSERIAL PRIMARY KEY,
		offer_id            BIGINT REFERENCES offers(id) ON DELETE CASCADE,
		sale_id             BIGINT REFERENCES sales(id) ON DELETE CASCADE,
		position            INTEGER NOT NULL,
		name                TEXT NOT NULL,
		airline_id          BIGINT REFERENCES airlines(id),
		start_location_id   BIGINT REFERENCES locations(id),
		end_location_id     BIGINT REFERENCES locations(id),
		start_date          TIMESTAMPTZ,
		end_date            TIMESTAMPTZ,
		day                 TEXT,
		booking             TEXT,
		reservation_code    TEXT,
		is_econom           BOOLEAN NOT NULL DEFAULT FALSE,
		is_business         BOOLEAN NOT NULL DEFAULT FALSE,
		food_type_id        BIGINT REFERENCES food_types(id),
		airplane_type_id    BIGINT REFERENCES airplane_types(id),
		airtime             TEXT,
		distance            NUMERIC(12, 4)
	);

	CREATE INDEX IF NOT EXISTS idx_offer_flights_offer ON offer_flights(offer_id);
	CREATE INDEX IF NOT EXISTS idx_offer_flights_sale ON offer_flights(sale_id);

	CREATE TABLE IF NOT EXISTS passengers (
		id          BIGSERIAL PRIMARY KEY,
		sale_id     BIGINT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		sub         INTEGER NOT NULL,
		last_name   TEXT NOT NULL,
		first_name  TEXT NOT NULL,
		extra       TEXT,
		total       NUMERIC(12, 2),
		net         NUMERIC(12, 2),
		fee         NUMERIC(12, 2),
		markup      NUMERIC(12, 2)
	);

	CREATE INDEX IF NOT EXISTS idx_passengers_sale ON passengers(sale_id);
	`

	_, err := d.pool.Exec(ctx, schema)
	return err
}

// Resolve implements reference.Resolver against the reference tables.
func (d *PostgresDB) Resolve(ctx context.Context, kind reference.Kind, code string) (reference.ID, bool, error) {
	table, ok := referenceTables[kind]
	if !ok {
		return 0, false, fmt.Errorf("unknown reference kind %q", kind)
	}

	query := d.sb.
		Select("id").
		From(table).
		Where(sq.Eq{"code": reference.NormalizeCode(code)}).
		Limit(1)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build resolve sql: %w", err)
	}

	var id int64
	err = d.pool.QueryRow(ctx, sqlStr, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolve %s %q: %w", kind, code, err)
	}
	return reference.ID(id), true, nil
}

// UpsertReference stores one catalog entry. A zero id lets the database
// assign one. It returns the stored id.
func (d *PostgresDB) UpsertReference(ctx context.Context, kind reference.Kind, code string, id reference.ID) (reference.ID, error) {
	table, ok := referenceTables[kind]
	if !ok {
		return 0, fmt.Errorf("unknown reference kind %q", kind)
	}

	columns := []string{"code"}
	values := []interface{}{reference.NormalizeCode(code)}
	if id != 0 {
		columns = append(columns, "id")
		values = append(values, int64(id))
	}

	query := d.sb.
		Insert(table).
		Columns(columns...).
		Values(values...).
		Suffix("ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build upsert reference sql: %w", err)
	}

	var stored int64
	if err := d.pool.QueryRow(ctx, sqlStr, args...).Scan(&stored); err != nil {
		return 0, fmt.Errorf("upsert %s %q: %w", kind, code, err)
	}
	return reference.ID(stored), nil
}

// SeedCatalog writes every entry of an in-memory catalog to the reference tables.
func (d *PostgresDB) SeedCatalog(ctx context.Context, catalog *reference.MapResolver) (int, error) {
	n := 0
	for _, kind := range reference.Kinds {
		for code, id := range catalog.Entries(kind) {
			if _, err := d.UpsertReference(ctx, kind, code, id); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// flightOwner says which reservation a flight row belongs to.
type flightOwner struct {
	column string
	id     int64
}

// SaveOffer stores an offer with its flights in one transaction and
// returns the offer id.
func (d *PostgresDB) SaveOffer(ctx context.Context, code string, flights []records.Flight) (int64, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sqlStr, args, err := d.sb.Insert("offers").Columns("code").Values(code).Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert offer sql: %w", err)
	}
	var id int64
	if err := tx.QueryRow(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert offer: %w", err)
	}

	if err := d.insertFlights(ctx, tx, flightOwner{column: "offer_id", id: id}, flights); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit offer: %w", err)
	}
	return id, nil
}

// SaveSale stores a sale with its flights and passengers in one
// transaction and returns the sale id.
func (d *PostgresDB) SaveSale(ctx context.Context, code, reservationCode string, flights []records.Flight, passengers []records.Passenger) (int64, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sqlStr, args, err := d.sb.
		Insert("sales").
		Columns("code", "reservation_code").
		Values(code, nullString(reservationCode)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert sale sql: %w", err)
	}
	var id int64
	if err := tx.QueryRow(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert sale: %w", err)
	}

	if err := d.insertFlights(ctx, tx, flightOwner{column: "sale_id", id: id}, flights); err != nil {
		return 0, err
	}
	if err := d.insertPassengers(ctx, tx, id, passengers); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit sale: %w", err)
	}
	return id, nil
}

func (d *PostgresDB) insertFlights(ctx context.Context, tx pgx.Tx, owner flightOwner, flights []records.Flight) error {
	if len(flights) == 0 {
		return nil
	}

	query := d.sb.
		Insert("offer_flights").
		Columns(
			owner.column,
			"position",
			"name",
			"airline_id",
			"start_location_id",
			"end_location_id",
			"start_date",
			"end_date",
			"day",
			"booking",
			"reservation_code",
			"is_econom",
			"is_business",
			"food_type_id",
			"airplane_type_id",
			"airtime",
			"distance",
		)
	for i, f := range flights {
		query = query.Values(
			owner.id,
			i,
			f.FlightNumber,
			refValue(f.Airline),
			refValue(f.Origin),
			refValue(f.Destination),
			f.Start,
			f.End,
			nullString(f.Day),
			nullString(f.Booking),
			nullString(f.ReservationCode),
			f.IsEconomy,
			f.IsBusiness,
			refValue(f.FoodType),
			refValue(f.AircraftType),
			nullString(f.AirTime),
			decimalValue(f.DistanceKm),
		)
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert flights sql: %w", err)
	}
	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert flights: %w", err)
	}
	return nil
}

func (d *PostgresDB) insertPassengers(ctx context.Context, tx pgx.Tx, saleID int64, passengers []records.Passenger) error {
	if len(passengers) == 0 {
		return nil
	}

	query := d.sb.
		Insert("passengers").
		Columns("sale_id", "position", "sub", "last_name", "first_name", "extra", "total", "net", "fee", "markup")
	for i, p := range passengers {
		query = query.Values(
			saleID,
			i,
			p.Sub,
			p.LastName,
			p.FirstName,
			nullString(p.Extra),
			decimalValue(p.Total),
			decimalValue(p.Net),
			decimalValue(p.Fee),
			decimalValue(p.Markup),
		)
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert passengers sql: %w", err)
	}
	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert passengers: %w", err)
	}
	return nil
}

// StoredFlight is a flight row read back from the database.
type StoredFlight struct {
	ID           int64
	Position     int
	Name         string
	AirlineID    *int64
	StartDate    *time.Time
	EndDate      *time.Time
	IsEconomy    bool
	AirTime      *string
	DistanceKm   decimal.NullDecimal
	Reservation  *string
	FoodTypeID   *int64
	AirplaneType *int64
}

// ListFlights returns the flights stored for an offer or a sale, in order.
func (d *PostgresDB) ListFlights(ctx context.Context, ownerColumn string, ownerID int64) ([]StoredFlight, error) {
	if ownerColumn != "offer_id" && ownerColumn != "sale_id" {
		return nil, fmt.Errorf("invalid owner column: %s", ownerColumn)
	}

	sqlStr, args, err := d.sb.
		Select("id", "position", "name", "airline_id", "start_date", "end_date", "is_econom",
			"airtime", "distance", "reservation_code", "food_type_id", "airplane_type_id").
		From("offer_flights").
		Where(sq.Eq{ownerColumn: ownerID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list flights sql: %w", err)
	}

	rows, err := d.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	defer rows.Close()

	var out []StoredFlight
	for rows.Next() {
		var f StoredFlight
		if err := rows.Scan(&f.ID, &f.Position, &f.Name, &f.AirlineID, &f.StartDate, &f.EndDate, &f.IsEconomy,
			&f.AirTime, &f.DistanceKm, &f.Reservation, &f.FoodTypeID, &f.AirplaneType); err != nil {
			return nil, fmt.Errorf("scan flight: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountPassengers returns the number of passengers stored for a sale.
func (d *PostgresDB) CountPassengers(ctx context.Context, saleID int64) (int, error) {
	sqlStr, args, err := d.sb.Select("COUNT(*)").From("passengers").Where(sq.Eq{"sale_id": saleID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count passengers sql: %w", err)
	}
	var n int
	if err := d.pool.QueryRow(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count passengers: %w", err)
	}
	return n, nil
}

// GetSaleByReservationCode returns the id of the latest sale with a code.
func (d *PostgresDB) GetSaleByReservationCode(ctx context.Context, code string) (int64, error) {
	sqlStr, args, err := d.sb.
		Select("id").
		From("sales").
		Where(sq.Eq{"reservation_code": code}).
		OrderBy("id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build get sale sql: %w", err)
	}

	var id int64
	err = d.pool.QueryRow(ctx, sqlStr, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get sale: %w", err)
	}
	return id, nil
}

func refValue(id *reference.ID) interface{} {
	if id == nil {
		return nil
	}
	return int64(*id)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func decimalValue(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

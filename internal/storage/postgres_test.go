package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gds_parser/internal/records"
	"gds_parser/internal/reference"
)

// setupTestPostgres creates a test database connection.
// Returns nil if no PostgreSQL connection is available.
func setupTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()

	// Check for environment variable or use defaults.
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "gds"
	}
	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		password = "gds"
	}
	database := os.Getenv("POSTGRES_DB")
	if database == "" {
		database = "gds_test"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pg, err := OpenPostgres(ctx, PostgresConfig{
		Host:     host,
		Port:     5432,
		User:     user,
		Password: password,
		Database: database,
	})
	if err != nil {
		return nil
	}

	// Ensure schema exists.
	if err := pg.CreateSchema(context.Background()); err != nil {
		pg.Close()
		return nil
	}

	return pg
}

func TestPostgresReferenceRoundTrip(t *testing.T) {
	pg := setupTestPostgres(t)
	if pg == nil {
		t.Skip("No PostgreSQL connection available")
	}
	defer pg.Close()

	ctx := context.Background()
	catalog := reference.NewMapResolver()
	catalog.Set(reference.KindAirline, "zz", 9001)
	catalog.Set(reference.KindLocation, "ZZA", 9002)

	n, err := pg.SeedCatalog(ctx, catalog)
	if err != nil {
		t.Fatalf("SeedCatalog: %v", err)
	}
	if n != 2 {
		t.Errorf("SeedCatalog = %d, want 2", n)
	}

	id, ok, err := pg.Resolve(ctx, reference.KindAirline, "ZZ")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !ok || id != 9001 {
		t.Errorf("Resolve(ZZ) = %d, %v, want 9001, true", id, ok)
	}

	_, ok, err = pg.Resolve(ctx, reference.KindAirline, "Q0")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ok {
		t.Error("Resolve(Q0) should not be found")
	}
}

func TestPostgresSaveSale(t *testing.T) {
	pg := setupTestPostgres(t)
	if pg == nil {
		t.Skip("No PostgreSQL connection available")
	}
	defer pg.Close()

	ctx := context.Background()
	code := "TEST" + time.Now().Format("150405.000000")
	start := time.Date(2025, 6, 12, 22, 5, 0, 0, time.UTC)

	flights := []records.Flight{{
		Order:        1,
		AirlineCode:  "LH",
		FlightNumber: "9694",
		OriginCode:   "FRA",
		Start:        &start,
		Booking:      "HK1",
		DistanceKm:   decimal.NewNullDecimal(decimal.RequireFromString("5349.57")),
	}}
	passengers := []records.Passenger{
		{Order: 1, Sub: 1, LastName: "IVANOV", FirstName: "IVAN",
			Total: decimal.NewNullDecimal(decimal.NewFromInt(4511))},
		{Order: 1, Sub: 2, LastName: "IVANOVA", FirstName: "ANNA"},
	}

	saleID, err := pg.SaveSale(ctx, code, "QWERTY"+code, flights, passengers)
	if err != nil {
		t.Fatalf("SaveSale: %v", err)
	}

	got, err := pg.GetSaleByReservationCode(ctx, "QWERTY"+code)
	if err != nil {
		t.Fatalf("GetSaleByReservationCode: %v", err)
	}
	if got != saleID {
		t.Errorf("GetSaleByReservationCode = %d, want %d", got, saleID)
	}

	stored, err := pg.ListFlights(ctx, "sale_id", saleID)
	if err != nil {
		t.Fatalf("ListFlights: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("ListFlights returned %d flights, want 1", len(stored))
	}

	count, err := pg.CountPassengers(ctx, saleID)
	if err != nil {
		t.Fatalf("CountPassengers: %v", err)
	}
	if count != 2 {
		t.Errorf("CountPassengers = %d, want 2", count)
	}

	if _, err := pg.GetSaleByReservationCode(ctx, "NOSUCH"+code); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSaleByReservationCode(missing) error = %v, want ErrNotFound", err)
	}
}

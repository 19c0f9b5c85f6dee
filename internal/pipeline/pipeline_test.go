package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gds_parser/internal/diag"
	"gds_parser/internal/extractor"
	"gds_parser/internal/gds"
	"gds_parser/internal/metrics"
	"gds_parser/internal/records"
	"gds_parser/internal/storage"
)

const offerText = `1 LH 9694 12JUN FRA ADD HK1 2205 0615 E0/LH
2 ET 707 13JUN ADD KBP HK1 0930 1405 E0/ET
`

const saleText = `0980/KIV1A0980 QWERTY
1.1CHERNOVA/LIUDMILA MRS 2.1IVANOV/IVAN MR
3 LH 9694Y 12JUN 5 FRA ADD SS1 2205 0615 /DCLH /E
4.S1 8917.00 N1 7898.00 F1 7000.00 Q1 1.00
`

type fakeEvents struct {
	events []storage.ParseEvent
	err    error
}

func (f *fakeEvents) Insert(_ context.Context, ev storage.ParseEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

type fakeRecords struct {
	offers  []string
	sales   []string
	flights int
	pax     int
	saveErr error
}

func (f *fakeRecords) SaveOffer(_ context.Context, code string, flights []records.Flight) (int64, error) {
	f.offers = append(f.offers, code)
	f.flights += len(flights)
	return int64(len(f.offers)), f.saveErr
}

func (f *fakeRecords) SaveSale(_ context.Context, code, reservationCode string, flights []records.Flight, passengers []records.Passenger) (int64, error) {
	f.sales = append(f.sales, reservationCode)
	f.flights += len(flights)
	f.pax += len(passengers)
	return int64(len(f.sales)), f.saveErr
}

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *storage.SQLiteDB) {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "parses.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	clock := func() time.Time { return time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC) }
	opts = append([]Option{WithParseLog(db), WithClock(clock)}, opts...)
	return New(extractor.New(nil, nil, nil), nil, opts...), db
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ok", nil, metrics.OutcomeOK},
		{"fatal", diag.Fatal("offer"), metrics.OutcomeFatal},
		{"wrapped fatal", errors.Join(errors.New("ctx"), diag.Fatal("offer")), metrics.OutcomeFatal},
		{"other", errors.New("boom"), metrics.OutcomeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Outcome(tt.err); got != tt.want {
				t.Errorf("Outcome() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProcessOffer(t *testing.T) {
	events := &fakeEvents{}
	recs := &fakeRecords{}
	p, db := newTestPipeline(t, WithEvents(events, 41), WithRecords(recs))

	ext, err := p.Process(context.Background(), &gds.Message{ID: 9, Dialect: gds.DialectOffer, Text: offerText, Source: "test"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(ext.Flights) != 2 {
		t.Fatalf("flights = %d, want 2", len(ext.Flights))
	}

	entries, err := db.Query(storage.QueryParams{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	if entries[0].Dialect != "offer" || entries[0].MessageID != 9 || entries[0].Source != "test" {
		t.Errorf("log entry = %+v", entries[0])
	}
	if entries[0].FlightKeys != "LH9694,ET707" {
		t.Errorf("FlightKeys = %q, want %q", entries[0].FlightKeys, "LH9694,ET707")
	}

	if len(events.events) != 1 || events.events[0].ID != 42 {
		t.Fatalf("events = %+v, want one event with id 42", events.events)
	}
	if len(recs.offers) != 1 || recs.flights != 2 {
		t.Errorf("records: offers=%d flights=%d, want 1/2", len(recs.offers), recs.flights)
	}
}

func TestProcessSaleDetected(t *testing.T) {
	recs := &fakeRecords{}
	p, _ := newTestPipeline(t, WithRecords(recs))

	ext, err := p.Process(context.Background(), &gds.Message{Text: saleText})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ext.Dialect != gds.DialectSale {
		t.Errorf("Dialect = %q, want sale", ext.Dialect)
	}
	if len(recs.sales) != 1 || recs.sales[0] != "QWERTY" {
		t.Errorf("sales = %v, want [QWERTY]", recs.sales)
	}
	if recs.pax != 2 {
		t.Errorf("passengers saved = %d, want 2", recs.pax)
	}
}

func TestProcessFatalIsLogged(t *testing.T) {
	events := &fakeEvents{}
	recs := &fakeRecords{}
	p, db := newTestPipeline(t, WithEvents(events, 0), WithRecords(recs))

	_, err := p.Process(context.Background(), &gds.Message{Dialect: gds.DialectOffer, Text: "nothing useful here"})
	if !errors.Is(err, diag.ErrInvalidReservation) {
		t.Fatalf("Process error = %v, want ErrInvalidReservation", err)
	}

	failed, qerr := db.Query(storage.QueryParams{Failed: true})
	if qerr != nil {
		t.Fatalf("Query: %v", qerr)
	}
	if len(failed) != 1 {
		t.Errorf("failed entries = %d, want 1", len(failed))
	}
	if len(events.events) != 1 || !events.events[0].Failed {
		t.Errorf("events = %+v, want one failed event", events.events)
	}
	if len(recs.offers) != 0 {
		t.Error("a failed parse must not be saved")
	}
}

func TestProcessStorageErrorDoesNotFail(t *testing.T) {
	events := &fakeEvents{err: errors.New("clickhouse down")}
	recs := &fakeRecords{saveErr: errors.New("postgres down")}
	p, _ := newTestPipeline(t, WithEvents(events, 0), WithRecords(recs))

	if _, err := p.Process(context.Background(), &gds.Message{Dialect: gds.DialectOffer, Text: offerText}); err != nil {
		t.Errorf("Process error = %v, want nil", err)
	}
}

func TestFromDBNil(t *testing.T) {
	opts, err := FromDB(context.Background(), nil)
	if err != nil || len(opts) != 0 {
		t.Errorf("FromDB(nil) = %d options, %v", len(opts), err)
	}
}

package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gds_parser/internal/diag"
	"gds_parser/internal/gds"
	"gds_parser/internal/records"
	"gds_parser/internal/reference"
	"gds_parser/internal/registry"
)

func TestNormaliseFlightNumber(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"LH0094", "LH94"},
		{"PS001", "PS1"},
		{"0094", "94"},
		{"9694", "9694"},
		{"000", "0"},
		{"LH", "LH"},
		{"", ""},
		{"  PS001  ", "PS1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormaliseFlightNumber(tt.input)
			if got != tt.want {
				t.Errorf("NormaliseFlightNumber(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func newTestExtractor() *Extractor {
	m := reference.NewMapResolver()
	m.Set(reference.KindAirline, "LH", 1)
	m.Set(reference.KindAirline, "ET", 2)
	m.Set(reference.KindLocation, "FRA", 10)
	m.Set(reference.KindLocation, "ADD", 11)
	m.Set(reference.KindLocation, "KBP", 12)
	m.Set(reference.KindFoodType, "M", 20)
	m.Set(reference.KindAirplaneType, "788", 30)

	clock := func() time.Time { return time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC) }
	b := records.NewBuilder(m, nil).WithClock(clock)
	return New(registry.Default(), b, nil)
}

const offerText = `1 LH 9694 12JUN FRA ADD HK1 2205 0615 E0/LH
2 ET 707 13JUN ADD KBP HK1 0930 1405 E0/ET
VI*«
1 LH*9694 12JUN FRA ADD 2205 0615 ‡1 M 788 7.10 3324 N
2 ET 707 13JUN ADD KBP 0930 1405 738 1525
`

func TestExtractOffer(t *testing.T) {
	e := newTestExtractor()
	ext, err := e.ExtractText(context.Background(), gds.DialectOffer, offerText)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	if ext.Dialect != gds.DialectOffer || ext.Offer == nil || ext.Sale != nil {
		t.Fatalf("unexpected extraction shape: %+v", ext)
	}
	if len(ext.Flights) != 2 {
		t.Fatalf("flights = %d, want 2", len(ext.Flights))
	}
	if ext.Flights[0].AirTime != "07:10" {
		t.Errorf("flights[0].AirTime = %q, want 07:10", ext.Flights[0].AirTime)
	}
	if ext.Flights[1].AircraftType != nil {
		t.Error("738 is not in the catalog and should stay unresolved")
	}
	if len(ext.Warnings) != 1 || ext.Warnings[0] != (diag.Warning{Category: diag.CategoryAirlineType, Value: "738"}) {
		t.Errorf("warnings = %v, want [airlineType 738]", ext.Warnings)
	}
	if _, ok := ext.Stats["second"]; !ok {
		t.Error("missing second stats")
	}
	keys := ext.FlightKeys()
	if len(keys) != 2 || keys[0] != "LH9694" || keys[1] != "ET707" {
		t.Errorf("FlightKeys = %v", keys)
	}
}

func TestExtractOfferFatal(t *testing.T) {
	e := newTestExtractor()
	ext, err := e.ExtractText(context.Background(), gds.DialectOffer, "NOTHING HERE")
	if !errors.Is(err, diag.ErrInvalidReservation) {
		t.Errorf("err = %v, want ErrInvalidReservation", err)
	}
	var fe *diag.FatalError
	if !errors.As(err, &fe) || fe.Dialect != "offer" {
		t.Errorf("err = %v, want offer FatalError", err)
	}
	if ext != nil {
		t.Errorf("extraction = %+v, want nil", ext)
	}
}

const saleText = `0980/KIV1A0980 QWERTY
1.1CHERNOVA/LIUDMILA MRS 2.1IVANOV/IVAN MR
3 LH 9694Y 12JUN 5 FRA ADD SS1 2205 0615 /DCLH /E
4.S1 8917.00 N1 7898.00 F1 7000.00 Q1 1.00
`

func TestExtractSaleDetected(t *testing.T) {
	e := newTestExtractor()
	msg := &gds.Message{ID: 5, Text: saleText}
	ext, err := e.Extract(context.Background(), msg)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if msg.Dialect != gds.DialectUnknown {
		t.Error("Extract must not modify the caller's message")
	}

	if ext.Dialect != gds.DialectSale || ext.MessageID != 5 {
		t.Errorf("Dialect/MessageID = %s/%d", ext.Dialect, ext.MessageID)
	}
	if ext.ReservationCode != "QWERTY" {
		t.Errorf("ReservationCode = %q", ext.ReservationCode)
	}
	if len(ext.Flights) != 1 || !ext.Flights[0].IsEconomy {
		t.Fatalf("flights = %+v", ext.Flights)
	}
	if len(ext.Passengers) != 2 {
		t.Fatalf("passengers = %d, want 2", len(ext.Passengers))
	}
	if !ext.Passengers[0].Markup.Valid || !ext.Passengers[0].Markup.Decimal.Equal(decimal.NewFromInt(1019)) {
		t.Errorf("passenger[0].Markup = %+v", ext.Passengers[0].Markup)
	}
	if ext.Passengers[1].Total.Valid {
		t.Error("passenger[1] should have no fare")
	}
	if len(ext.Warnings) != 1 || ext.Warnings[0].Value != diag.CountMismatch {
		t.Errorf("warnings = %v, want [stack count-mismatch]", ext.Warnings)
	}
	if ext.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", ext.Dropped())
	}
}

func TestTrace(t *testing.T) {
	e := newTestExtractor()
	traces := e.Trace(&gds.Message{Text: offerText})
	if len(traces) != 1 || traces[0].ParserName != "offer" {
		t.Fatalf("traces = %+v", traces)
	}
}

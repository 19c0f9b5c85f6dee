package storage

import (
	"errors"
	"testing"
	"time"

	"gds_parser/internal/diag"
	"gds_parser/internal/extractor"
	"gds_parser/internal/records"
	"gds_parser/internal/rows"
)

func TestEventFromExtraction(t *testing.T) {
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ext := &extractor.Extraction{
		Dialect:         "sale",
		Source:          "nats",
		ReservationCode: "QWERTY",
		Flights: []records.Flight{
			{AirlineCode: "LH", FlightNumber: "9694"},
		},
		Passengers: []records.Passenger{{}, {}},
		Stats: map[string]rows.Stats{
			"flights":    {Scanned: 2, Matched: 1},
			"passengers": {Scanned: 2, Matched: 2},
		},
		Warnings: []diag.Warning{{Category: diag.CategoryStack, Value: diag.CountMismatch}},
	}

	ev := EventFromExtraction(7, ts, "", ext, nil)
	if ev.ID != 7 || !ev.Timestamp.Equal(ts) {
		t.Errorf("ID/Timestamp = %d/%v, want 7/%v", ev.ID, ev.Timestamp, ts)
	}
	if ev.Dialect != "sale" {
		t.Errorf("Dialect = %q, want %q", ev.Dialect, "sale")
	}
	if len(ev.FlightKeys) != 1 || ev.FlightKeys[0] != "LH9694" {
		t.Errorf("FlightKeys = %v, want [LH9694]", ev.FlightKeys)
	}
	if ev.Flights != 1 || ev.Passengers != 2 {
		t.Errorf("Flights/Passengers = %d/%d, want 1/2", ev.Flights, ev.Passengers)
	}
	if ev.Scanned != 4 || ev.Matched != 3 {
		t.Errorf("Scanned/Matched = %d/%d, want 4/3", ev.Scanned, ev.Matched)
	}
	if len(ev.Warnings) != 1 || ev.Warnings[0] != "stack:count-mismatch" {
		t.Errorf("Warnings = %v, want [stack:count-mismatch]", ev.Warnings)
	}
	if ev.Failed {
		t.Error("Failed should be false")
	}
}

func TestEventFromFailedParse(t *testing.T) {
	ev := EventFromExtraction(1, time.Now(), "offer", nil, errors.New("offer: invalid reservation text"))
	if !ev.Failed {
		t.Error("Failed should be true")
	}
	if ev.Dialect != "offer" {
		t.Errorf("Dialect = %q, want %q", ev.Dialect, "offer")
	}
	if ev.Error != "offer: invalid reservation text" {
		t.Errorf("Error = %q", ev.Error)
	}
	if ev.FlightKeys != nil {
		t.Errorf("FlightKeys = %v, want nil", ev.FlightKeys)
	}
}

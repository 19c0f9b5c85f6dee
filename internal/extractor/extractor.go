// Package extractor runs the whole extraction of one reservation text:
// dispatch to the dialect parser, record building and warning collection.
// This package is storage-agnostic; callers persist the Extraction as they see fit.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gds_parser/internal/diag"
	"gds_parser/internal/gds"
	"gds_parser/internal/parsers/offer"
	"gds_parser/internal/parsers/sale"
	"gds_parser/internal/records"
	"gds_parser/internal/registry"
	"gds_parser/internal/rows"
)

// Extraction is everything extracted from one message.
type Extraction struct {
	MessageID       int64                 `json:"message_id,omitempty"`
	Dialect         gds.Dialect           `json:"dialect"`
	Source          string                `json:"source,omitempty"`
	ReservationCode string                `json:"reservation_code,omitempty"`
	Offer           *offer.Record         `json:"offer,omitempty"`
	Sale            *sale.Record          `json:"sale,omitempty"`
	Flights         []records.Flight      `json:"flights"`
	Passengers      []records.Passenger   `json:"passengers,omitempty"`
	Stats           map[string]rows.Stats `json:"stats"`
	Warnings        []diag.Warning        `json:"warnings,omitempty"`
}

// Dropped returns the number of candidate rows dropped across all scans.
func (e *Extraction) Dropped() int {
	n := 0
	for _, s := range e.Stats {
		n += s.Dropped()
	}
	return n
}

// FlightKeys returns the normalised designators (LH9694) of the flights.
func (e *Extraction) FlightKeys() []string {
	out := make([]string, 0, len(e.Flights))
	for _, f := range e.Flights {
		out = append(out, f.AirlineCode+NormaliseFlightNumber(f.FlightNumber))
	}
	return out
}

// Extractor turns messages into Extractions. It is safe for concurrent use
// as long as its resolver is.
type Extractor struct {
	registry *registry.Registry
	builder  *records.Builder
	logger   *slog.Logger
}

// New creates an Extractor. A nil registry uses registry.Default().
func New(reg *registry.Registry, builder *records.Builder, logger *slog.Logger) *Extractor {
	if reg == nil {
		reg = registry.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if builder == nil {
		builder = records.NewBuilder(nil, logger)
	}
	reg.Sort()
	return &Extractor{registry: reg, builder: builder, logger: logger}
}

// Extract parses and builds one message. A fatal parse error is returned
// unchanged so callers can match it with errors.Is / errors.As.
func (e *Extractor) Extract(ctx context.Context, msg *gds.Message) (*Extraction, error) {
	dialect := registry.DialectOf(msg)
	if msg.Dialect == gds.DialectUnknown {
		// Dispatch under the detected dialect without mutating the caller's message.
		tagged := *msg
		tagged.Dialect = dialect
		msg = &tagged
	}

	var sink diag.Sink
	result, err := e.registry.Dispatch(msg)
	if err != nil {
		sink.Fail(err)
		return nil, sink.Err()
	}

	ext := &Extraction{
		MessageID: int64(msg.ID),
		Dialect:   dialect,
		Source:    msg.Source,
		Stats:     make(map[string]rows.Stats),
	}

	switch r := result.(type) {
	case *offer.Result:
		ext.Offer = &r.Record
		ext.Stats["basic"] = r.BasicStats
		if r.Record.Second != nil {
			ext.Stats["second"] = r.SecondStats
		}
		ext.Flights = e.builder.BuildOfferFlights(ctx, r.Record.Basic, r.Record.Second, &sink)

	case *sale.Result:
		ext.Sale = &r.Record
		ext.ReservationCode = r.ReservationCode
		ext.Stats["flights"] = r.FlightStats
		ext.Stats["passengers"] = r.PassengerStats
		ext.Stats["prices"] = r.PriceStats
		ext.Flights = e.builder.BuildFlights(ctx, r.Record.Flights, &sink)
		ext.Passengers = records.JoinPassengerPrices(r.Record.Passengers, r.Record.Prices)
		sink.Add(r.Warnings...)

	default:
		return nil, fmt.Errorf("unexpected result type %q", result.Type())
	}

	ext.Warnings = sink.Warnings()

	e.logger.Debug("extracted",
		slog.Int64("message_id", ext.MessageID),
		slog.String("dialect", string(ext.Dialect)),
		slog.Int("flights", len(ext.Flights)),
		slog.Int("passengers", len(ext.Passengers)),
		slog.Int("warnings", sink.Len()),
		slog.Int("dropped", ext.Dropped()))

	return ext, nil
}

// ExtractText is a shorthand for Extract on an untraced text.
func (e *Extractor) ExtractText(ctx context.Context, dialect gds.Dialect, text string) (*Extraction, error) {
	return e.Extract(ctx, &gds.Message{Dialect: dialect, Text: text})
}

// Trace runs the traceable parsers of the message's dialect.
func (e *Extractor) Trace(msg *gds.Message) []*registry.TraceResult {
	var out []*registry.TraceResult
	for _, p := range e.registry.Lookup(registry.DialectOf(msg)) {
		if t, ok := p.(registry.Traceable); ok {
			out = append(out, t.ParseWithTrace(msg))
		}
	}
	return out
}

// NormaliseFlightNumber strips leading zeros from flight numbers for consistent matching.
// For example, "LH0094" becomes "LH94" and "PS001" becomes "PS1".
func NormaliseFlightNumber(flightNum string) string {
	flightNum = strings.TrimSpace(flightNum)
	if flightNum == "" {
		return ""
	}

	// Find where the numeric part starts.
	for i, r := range flightNum {
		if r >= '0' && r <= '9' {
			prefix := flightNum[:i]
			numPart := strings.TrimLeft(flightNum[i:], "0")
			if numPart == "" {
				numPart = "0" // Preserve at least one zero for flight "000".
			}
			return prefix + numPart
		}
	}

	// No numeric part found, return as-is.
	return flightNum
}

// Package sale parses Sale codes: booked reservations with passengers,
// flights and fares scattered through free text.
package sale

import (
	"strings"

	"gds_parser/internal/diag"
	"gds_parser/internal/gds"
	"gds_parser/internal/patterns"
	"gds_parser/internal/records"
	"gds_parser/internal/registry"
	"gds_parser/internal/rows"
	"gds_parser/internal/validate"
)

// Record is the extracted content of a sale. The three sequences are
// scanned independently; passengers and prices line up by position only.
type Record struct {
	Code       string              `json:"code"`
	Passengers []rows.PassengerRow `json:"passengers"`
	Flights    []rows.FlightRow    `json:"flights"`
	Prices     []rows.PriceRow     `json:"prices"`
}

// Result represents a parsed sale.
type Result struct {
	MsgID           int64          `json:"message_id,omitempty"`
	Record          Record         `json:"record"`
	ReservationCode string         `json:"reservation_code,omitempty"`
	FlightStats     rows.Stats     `json:"flight_stats"`
	PassengerStats  rows.Stats     `json:"passenger_stats"`
	PriceStats      rows.Stats     `json:"price_stats"`
	Warnings        []diag.Warning `json:"warnings,omitempty"`
}

func (r *Result) Type() string     { return string(gds.DialectSale) }
func (r *Result) MessageID() int64 { return r.MsgID }

// Parse extracts a sale. It never fails: missing parts show up as warnings.
func Parse(text string) *Result {
	normalized := patterns.Normalize(text)

	result := &Result{Record: Record{Code: text}}
	result.Record.Flights, result.FlightStats = rows.ScanFlights(normalized)
	result.Record.Passengers, result.PassengerStats = rows.ScanPassengers(normalized)
	result.Record.Prices, result.PriceStats = rows.ScanPrices(normalized)
	result.ReservationCode = records.GeneralReservationCode(text)

	result.Warnings = validate.Sale(
		len(result.Record.Passengers),
		len(result.Record.Flights),
		len(result.Record.Prices),
	)
	return result
}

// Parser registers sale parsing with the dispatch registry.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string         { return "sale" }
func (p *Parser) Dialect() gds.Dialect { return gds.DialectSale }
func (p *Parser) Priority() int        { return 100 }

// QuickCheck accepts any non-blank text. A sale with nothing recognisable
// is still a result, carrying warnings.
func (p *Parser) QuickCheck(text string) bool {
	return strings.TrimSpace(text) != ""
}

func (p *Parser) Parse(msg *gds.Message) (registry.Result, error) {
	result := Parse(msg.Text)
	result.MsgID = int64(msg.ID)
	return result, nil
}

// ParseWithTrace implements registry.Traceable.
func (p *Parser) ParseWithTrace(msg *gds.Message) *registry.TraceResult {
	trace := &registry.TraceResult{
		ParserName: p.Name(),
		Dialect:    gds.DialectSale,
	}

	quickCheckPassed := p.QuickCheck(msg.Text)
	trace.QuickCheck = &registry.QuickCheck{Passed: quickCheckPassed}
	if !quickCheckPassed {
		trace.QuickCheck.Reason = "empty text"
		return trace
	}

	normalized := patterns.Normalize(msg.Text)
	trace.Segments = []registry.SegmentTrace{
		traceScan("flights", rows.FormatFlightSpan, rows.FormatFlight, normalized),
		traceScan("passengers", rows.FormatPassenger, rows.FormatPassenger, normalized),
		traceScan("prices", rows.FormatPriceSpan, rows.FormatPrice, normalized),
	}
	trace.Matched = true
	return trace
}

// traceScan finds the candidate spans of a scan and re-matches each with
// the row format that decodes it.
func traceScan(name, spanFormat, rowFormat, text string) registry.SegmentTrace {
	seg := registry.SegmentTrace{
		Name:    name,
		Format:  rowFormat,
		Pattern: rows.Pattern(rowFormat),
	}
	for _, span := range rows.FindFormat(spanFormat, text) {
		rt := registry.RowTrace{Text: span.Text}
		if m := rows.MatchFormat(rowFormat, strings.TrimSpace(span.Text)); m != nil {
			rt.Matched = true
			rt.Captures = m.Captures
		}
		seg.Rows = append(seg.Rows, rt)
	}
	return seg
}

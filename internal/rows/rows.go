// Package rows decodes GDS terminal rows into typed records.
//
// Every scan reports Stats alongside its rows: lines or spans that fail the
// row pattern are dropped without a diagnostic, and Stats makes that
// tolerance visible.
package rows

import (
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"gds_parser/internal/patterns"
)

// FlightRow is one itinerary segment as printed by the terminal.
type FlightRow struct {
	Order       int    `json:"order"`
	Airline     string `json:"airline"`
	FlightToken string `json:"flight_token"` // Flight number, may end with the booking class.
	Date        string `json:"date"`         // Day + month, e.g. 12JUN.
	Weekday     string `json:"weekday,omitempty"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Booking     string `json:"booking,omitempty"` // Segment status + count, e.g. SS1.
	TimeFrom    string `json:"time_from"`
	TimeTo      string `json:"time_to"`
	SystemInfo  string `json:"system_info,omitempty"`
}

// FlightDetailRow is a segment from the detail part of an offer. It is
// aligned with the basic FlightRow of the same index.
type FlightDetailRow struct {
	FlightRow
	Connection    string `json:"connection,omitempty"`
	FoodType      string `json:"food_type,omitempty"`
	AircraftType  string `json:"aircraft_type"`
	AirTime       string `json:"air_time,omitempty"` // H.MM or HH.MM.
	DistanceMiles string `json:"distance_miles"`
}

// PassengerRow is one name element of a sale.
type PassengerRow struct {
	Order     int    `json:"order"`
	Sub       int    `json:"sub"`
	LastName  string `json:"last_name"`
	FirstName string `json:"first_name"`
	Extra     string `json:"extra,omitempty"`
}

// PriceRow is one fare line of a sale. Position is its index in the sale's
// price sequence, which is what pairs it with a passenger.
type PriceRow struct {
	Position   int             `json:"position"`
	Order      int             `json:"order"`
	TotalLabel string          `json:"total_label"`
	Total      decimal.Decimal `json:"total"`
	NetLabel   string          `json:"net_label"`
	Net        decimal.Decimal `json:"net"`
	FeeLabel   string          `json:"fee_label"`
	Fee        decimal.Decimal `json:"fee"`
}

// Markup is the agency margin: total minus net.
func (p PriceRow) Markup() decimal.Decimal {
	return p.Total.Sub(p.Net)
}

// Stats counts how many candidate lines or spans a scan looked at and how
// many of them decoded into rows.
type Stats struct {
	Scanned int `json:"scanned"`
	Matched int `json:"matched"`
}

// Dropped is the number of candidates that were silently discarded.
func (s Stats) Dropped() int { return s.Scanned - s.Matched }

// Grok compiler singleton.
var (
	grokCompiler *patterns.Compiler
	grokOnce     sync.Once
	grokErr      error
)

// getCompiler returns the singleton grok compiler.
func getCompiler() (*patterns.Compiler, error) {
	grokOnce.Do(func() {
		grokCompiler = patterns.NewCompiler(Formats, nil)
		grokErr = grokCompiler.Compile()
	})
	return grokCompiler, grokErr
}

func match(format, text string) *patterns.Match {
	c, err := getCompiler()
	if err != nil {
		return nil
	}
	return c.Match(format, text)
}

func findAll(format, text string) []*patterns.Match {
	c, err := getCompiler()
	if err != nil {
		return nil
	}
	return c.FindAllMatches(text, format)
}

// IsDelimiter reports whether line is the separator between the basic and
// the detail part of an offer (the VI*« family).
func IsDelimiter(line string) bool {
	return match(FormatDelimiter, strings.TrimSpace(line)) != nil
}

// DecodeFlight decodes an itinerary segment line.
func DecodeFlight(line string) (FlightRow, bool) {
	m := match(FormatFlight, strings.TrimSpace(line))
	if m == nil {
		return FlightRow{}, false
	}
	return flightFromCaptures(m.Captures), true
}

// DecodeFlightDetail decodes a detail segment line. A trailing space is
// appended before matching because the last group of the format is
// delimited by whitespace.
func DecodeFlightDetail(line string) (FlightDetailRow, bool) {
	m := match(FormatDetail, strings.TrimSpace(line)+" ")
	if m == nil {
		return FlightDetailRow{}, false
	}
	c := m.Captures
	return FlightDetailRow{
		FlightRow:     flightFromCaptures(c),
		Connection:    c["connection"],
		FoodType:      strings.TrimSpace(c["food"]),
		AircraftType:  c["aircraft"],
		AirTime:       c["air_time"],
		DistanceMiles: c["miles"],
	}, true
}

func flightFromCaptures(c map[string]string) FlightRow {
	order, _ := strconv.Atoi(c["order"])
	return FlightRow{
		Order:       order,
		Airline:     c["airline"],
		FlightToken: c["flight"],
		Date:        c["date"],
		Weekday:     c["weekday"],
		Origin:      c["origin"],
		Destination: c["destination"],
		Booking:     c["booking"],
		TimeFrom:    c["time_from"],
		TimeTo:      c["time_to"],
		SystemInfo:  c["system"],
	}
}

// DecodePassenger decodes a passenger name element.
func DecodePassenger(text string) (PassengerRow, bool) {
	m := match(FormatPassenger, strings.TrimSpace(text))
	if m == nil {
		return PassengerRow{}, false
	}
	return passengerFromCaptures(m.Captures), true
}

func passengerFromCaptures(c map[string]string) PassengerRow {
	order, _ := strconv.Atoi(c["order"])
	sub, _ := strconv.Atoi(c["sub"])
	return PassengerRow{
		Order:     order,
		Sub:       sub,
		LastName:  c["last_name"],
		FirstName: c["first_name"],
		Extra:     c["extra"],
	}
}

// DecodePrice decodes a fare line. position is the index the row will take
// in the price sequence.
func DecodePrice(text string, position int) (PriceRow, bool) {
	m := match(FormatPrice, strings.TrimSpace(text))
	if m == nil {
		return PriceRow{}, false
	}
	c := m.Captures

	total, err := decimal.NewFromString(c["total"])
	if err != nil {
		return PriceRow{}, false
	}
	net, err := decimal.NewFromString(c["net"])
	if err != nil {
		return PriceRow{}, false
	}
	fee, err := decimal.NewFromString(c["fee"])
	if err != nil {
		return PriceRow{}, false
	}
	order, _ := strconv.Atoi(c["order"])

	return PriceRow{
		Position:   position,
		Order:      order,
		TotalLabel: c["total_label"],
		Total:      total,
		NetLabel:   c["net_label"],
		Net:        net,
		FeeLabel:   c["fee_label"],
		Fee:        fee,
	}, true
}

// FlightsFromLines decodes every line with the segment format. Blank lines
// are not counted as scanned.
func FlightsFromLines(lines []string) ([]FlightRow, Stats) {
	var out []FlightRow
	var st Stats
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		st.Scanned++
		if row, ok := DecodeFlight(line); ok {
			out = append(out, row)
			st.Matched++
		}
	}
	return out, st
}

// DetailsFromLines decodes every line with the detail format.
func DetailsFromLines(lines []string) ([]FlightDetailRow, Stats) {
	var out []FlightDetailRow
	var st Stats
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		st.Scanned++
		if row, ok := DecodeFlightDetail(line); ok {
			out = append(out, row)
			st.Matched++
		}
	}
	return out, st
}

// ScanFlights finds every itinerary line in free text and decodes it.
func ScanFlights(text string) ([]FlightRow, Stats) {
	spans := findAll(FormatFlightSpan, text)
	var out []FlightRow
	st := Stats{Scanned: len(spans)}
	for _, s := range spans {
		if row, ok := DecodeFlight(s.Text); ok {
			out = append(out, row)
			st.Matched++
		}
	}
	return out, st
}

// ScanPassengers finds every passenger name element in free text.
func ScanPassengers(text string) ([]PassengerRow, Stats) {
	matches := findAll(FormatPassenger, text)
	out := make([]PassengerRow, 0, len(matches))
	for _, m := range matches {
		out = append(out, passengerFromCaptures(m.Captures))
	}
	return out, Stats{Scanned: len(matches), Matched: len(out)}
}

// ScanPrices finds every fare line in free text and decodes it.
func ScanPrices(text string) ([]PriceRow, Stats) {
	spans := findAll(FormatPriceSpan, text)
	var out []PriceRow
	st := Stats{Scanned: len(spans)}
	for _, s := range spans {
		if row, ok := DecodePrice(s.Text, len(out)); ok {
			out = append(out, row)
			st.Matched++
		}
	}
	return out, st
}

// ScanLocators returns the booking references found in the PNR header, in order.
func ScanLocators(text string) []string {
	var out []string
	for _, m := range findAll(FormatLocator, text) {
		out = append(out, m.Captures["locator"])
	}
	return out
}

// Pattern returns the expanded regex of a row format.
func Pattern(format string) string {
	c, err := getCompiler()
	if err != nil {
		return ""
	}
	return c.Expanded(format)
}

// MatchFormat matches text against one row format as is. It is used for
// tracing; decoding goes through the Decode functions.
func MatchFormat(format, text string) *patterns.Match {
	return match(format, text)
}

// FindFormat returns every non-overlapping occurrence of a row format in text.
func FindFormat(format, text string) []*patterns.Match {
	return findAll(format, text)
}

// Package records turns decoded rows into the flight and passenger values
// handed to persistence.
package records

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gds_parser/internal/reference"
	"gds_parser/internal/rows"
)

// Flight is a built itinerary segment. Reference fields are nil when the
// code could not be resolved.
type Flight struct {
	Order           int           `json:"order"`
	AirlineCode     string        `json:"airline_code"`
	Airline         *reference.ID `json:"airline_id"`
	FlightNumber    string        `json:"flight_number"`
	OriginCode      string        `json:"origin_code"`
	Origin          *reference.ID `json:"origin_id"`
	DestinationCode string        `json:"destination_code"`
	Destination     *reference.ID `json:"destination_id"`
	Start           *time.Time    `json:"start,omitempty"`
	End             *time.Time    `json:"end,omitempty"`
	Day             string        `json:"day,omitempty"`
	Booking         string        `json:"booking,omitempty"`
	ReservationCode string        `json:"reservation_code,omitempty"`
	IsEconomy       bool          `json:"is_economy"`
	IsBusiness      bool          `json:"is_business"`

	// Set only for offer segments that have a detail row.
	FoodTypeCode     string              `json:"food_type_code,omitempty"`
	FoodType         *reference.ID       `json:"food_type_id,omitempty"`
	AircraftTypeCode string              `json:"aircraft_type_code,omitempty"`
	AircraftType     *reference.ID       `json:"aircraft_type_id,omitempty"`
	AirTime          string              `json:"air_time,omitempty"`
	DistanceKm       decimal.NullDecimal `json:"distance_km"`
}

// Passenger is a built passenger with the fare found at the same position.
// Money fields are invalid (null) when the sale has fewer fares than
// passengers.
type Passenger struct {
	Order     int                 `json:"order"`
	Sub       int                 `json:"sub"`
	LastName  string              `json:"last_name"`
	FirstName string              `json:"first_name"`
	Extra     string              `json:"extra,omitempty"`
	Total     decimal.NullDecimal `json:"total"`
	Net       decimal.NullDecimal `json:"net"`
	Fee       decimal.NullDecimal `json:"fee"`
	Markup    decimal.NullDecimal `json:"markup"`
}

// milesToKm is the exact statute mile in kilometres.
var milesToKm = decimal.RequireFromString("1.609344")

var reservationCodeRe = regexp.MustCompile(`\S{5}\*?(\S{2,})`)

// FlightNumber returns the leading digit run of a flight token, dropping any
// booking class letter.
func FlightNumber(token string) string {
	i := 0
	for i < len(token) && token[i] >= '0' && token[i] <= '9' {
		i++
	}
	return token[:i]
}

// ReservationCode extracts the carrier confirmation from the system info of
// a segment: five characters of system prefix, an optional '*', then the
// code itself. It returns "" when there is none.
func ReservationCode(systemInfo string) string {
	m := reservationCodeRe.FindStringSubmatch(systemInfo)
	if m == nil {
		return ""
	}
	return m[1]
}

// IsEconomy reports whether the system info carries the economy marker.
func IsEconomy(systemInfo string) bool {
	return strings.Contains(systemInfo, "/E")
}

// CombineDateTime joins a day+month token (12JUN) with an HHMM time token
// in the given year, in UTC. The first two characters of the time are
// hours and the rest minutes.
func CombineDateTime(dateToken, timeToken string, year int) (time.Time, bool) {
	day, err := time.Parse("2Jan2006", strings.TrimSpace(dateToken)+strconv.Itoa(year))
	if err != nil || len(timeToken) < 3 {
		return time.Time{}, false
	}
	hh, err := strconv.Atoi(timeToken[:2])
	if err != nil || hh > 23 {
		return time.Time{}, false
	}
	mm, err := strconv.Atoi(timeToken[2:])
	if err != nil || mm > 59 {
		return time.Time{}, false
	}
	return time.Date(year, day.Month(), day.Day(), hh, mm, 0, 0, time.UTC), true
}

// AirTime turns an H.MM / HH.MM token into the five character HH:MM form.
func AirTime(token string) string {
	if token == "" {
		return ""
	}
	s := strings.ReplaceAll(token, ".", ":")
	if len(s) != 5 {
		s = "0" + s
	}
	return s
}

// DistanceKm converts a statute miles token to kilometres.
func DistanceKm(milesToken string) (decimal.Decimal, bool) {
	miles, err := decimal.NewFromString(strings.TrimSpace(milesToken))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return miles.Mul(milesToKm), true
}

// BuildPassenger combines a passenger row with the fare at the same
// position, if there is one.
func BuildPassenger(row rows.PassengerRow, price *rows.PriceRow) Passenger {
	p := Passenger{
		Order:     row.Order,
		Sub:       row.Sub,
		LastName:  row.LastName,
		FirstName: row.FirstName,
		Extra:     row.Extra,
	}
	if price != nil {
		p.Total = decimal.NewNullDecimal(price.Total)
		p.Net = decimal.NewNullDecimal(price.Net)
		p.Fee = decimal.NewNullDecimal(price.Fee)
		p.Markup = decimal.NewNullDecimal(price.Markup())
	}
	return p
}

// JoinPassengerPrices pairs passengers with fares by position: passenger i
// takes price i. Passengers past the end of prices get no money fields and
// surplus prices are ignored; the validator reports the mismatch.
func JoinPassengerPrices(passengers []rows.PassengerRow, prices []rows.PriceRow) []Passenger {
	out := make([]Passenger, 0, len(passengers))
	for i, row := range passengers {
		var price *rows.PriceRow
		if i < len(prices) {
			price = &prices[i]
		}
		out = append(out, BuildPassenger(row, price))
	}
	return out
}

// GeneralReservationCode returns the booking reference from the PNR header
// of a sale, or "" when the header has none.
func GeneralReservationCode(saleText string) string {
	codes := rows.ScanLocators(saleText)
	if len(codes) == 0 {
		return ""
	}
	return codes[0]
}

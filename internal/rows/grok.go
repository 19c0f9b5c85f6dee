// Package rows provides grok-style pattern definitions for GDS row extraction.
package rows

import "gds_parser/internal/patterns"

// Format names.
const (
	FormatFlight     = "flight"
	FormatDetail     = "flight_detail"
	FormatDelimiter  = "delimiter"
	FormatFlightSpan = "sale_flight_span"
	FormatPassenger  = "passenger"
	FormatPriceSpan  = "price_span"
	FormatPrice      = "price"
	FormatLocator    = "general_locator"
)

// Formats defines the known GDS row formats.
var Formats = []patterns.Format{
	// Itinerary segment line.
	// Example: 1 LH9694Y 12JUN 5 FRAADD SS1 2205 0615 13JUN 6 /DCLH /E
	// Spacing between order/carrier/flight and between the two stations is optional.
	{
		Name: FormatFlight,
		Pattern: `(?P<order>{ORDER})\s?(?P<airline>{CARRIER})\s?(?P<flight>{FLIGHTNO})\s` +
			`(?P<date>{DAYMON})\s?(?P<weekday>{WEEKDAY})\s` +
			`(?P<origin>{STATION})\s?(?P<destination>{STATION})\s?\S?(?P<booking>{STATUS})?\s` +
			`(?P<time_from>{TIME4})\s(?P<time_to>{TIME4})\s(?P<system>.*)`,
		Fields: []string{"order", "airline", "flight", "date", "weekday", "origin", "destination",
			"booking", "time_from", "time_to", "system"},
	},

	// Detail (second segment) line of an offer, matched with a trailing space appended.
	// Example: 1 LH*9694 12JUN FRA ADD 2205 0615 ‡1 M 788 7.10 3324 N
	// The connection marker is a glyph plus digit; a non-ASCII glyph counts as one token.
	{
		Name: FormatDetail,
		Pattern: `(?P<order>{ORDER})[ ,*](?P<airline>{CARRIER})[ ,*](?P<flight>{FLIGHTNO})\s` +
			`(?P<date>{DAYMON})\s?(?P<weekday>{WEEKDAY})\s` +
			`(?P<origin>{ALPHA3})\s?(?P<destination>{ALPHA3})\s?(?P<booking>{STATUS})?\s` +
			`(?P<time_from>{TIME4})\s(?P<time_to>{TIME4})\s?` +
			`(?P<connection>(?:[^\x00-\x7F]|\S{2,3})\d)?\s?(?P<food>\D{1,3})?\s?` +
			`(?P<aircraft>\S{3})\s?(?P<air_time>{AIRTIME})?\s?(?P<miles>{MILES})\s(?P<tail>\D?)`,
		Fields: []string{"order", "airline", "flight", "date", "weekday", "origin", "destination",
			"booking", "time_from", "time_to", "connection", "food", "aircraft", "air_time", "miles", "tail"},
	},

	// Separator between the basic and the detail part of an offer.
	// Examples: VI*«  VI  *VI*  VI*« LH9694
	{
		Name:    FormatDelimiter,
		Pattern: `^\S?\*?VI(?:\*\S*)?(?:\s|$)`,
	},

	// Itinerary line anywhere in sale text. Origin and destination form a
	// six-letter block, optionally split by one space.
	{
		Name:    FormatFlightSpan,
		Pattern: `\d \S{2} ?\S{3,5} \S{4,5} ?\d? [a-zA-Z]{3} ?[a-zA-Z]{3}.*\d{4}.*`,
	},

	// Passenger name element.
	// Example: 1.1CHERNOVA/LIUDMILA MRS
	{
		Name:    FormatPassenger,
		Pattern: `(?P<order>\d)\.(?P<sub>\d)(?P<last_name>{NAME})/(?P<first_name>{NAME})(?: (?P<extra>{NAME}))?`,
		Fields:  []string{"order", "sub", "last_name", "first_name", "extra"},
	},

	// Fare line anywhere in sale text.
	{
		Name:    FormatPriceSpan,
		Pattern: `\d{1,2}\.\w\d{1,2} \d{2,}.*`,
	},

	// Fare line fields: total, net, fare and an optional quantity that is not kept.
	// Example: 1.S1 8917.00 N1 7898.00 F1 7000.00 Q1 1.00
	{
		Name: FormatPrice,
		Pattern: `(?P<order>\d{1,2})\.(?P<total_label>{FARE_TAG}) (?P<total>{AMOUNT}) ` +
			`(?P<net_label>{FARE_TAG}) (?P<net>{AMOUNT}) ` +
			`(?P<fee_label>{FARE_TAG}) (?P<fee>{AMOUNT})(?: {FARE_TAG} \d+(?:\.\d{2})?)?`,
		Fields: []string{"order", "total_label", "total", "net_label", "net", "fee_label", "fee"},
	},

	// Booking reference in the PNR header.
	// Example: 0980/KIV1A0980 QWERTY
	{
		Name:    FormatLocator,
		Pattern: `\d{3,4}/\S{4,5}\d{2,} (?P<locator>{LOCATOR})`,
		Fields:  []string{"locator"},
	},
}

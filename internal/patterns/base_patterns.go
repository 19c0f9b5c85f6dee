// Package patterns provides the grok-style pattern compiler and the text
// normaliser shared by the GDS parsers.
// This file contains grok-style base patterns for use with the Compiler.

package patterns

// BasePatterns defines reusable regex components for grok-style pattern composition.
// These are referenced in format patterns using {PATTERN_NAME} syntax.
var BasePatterns = map[string]string{
	// Itinerary line fields.
	"ORDER":    `\d`,             // Segment order number (1-9)
	"CARRIER":  `\S{2}`,          // Airline designator (LH, 9U, S7)
	"FLIGHTNO": `\S{1,5}`,        // Flight number, may carry the booking class (9694Y)
	"DAYMON":   `\S{4,5}`,        // Day + month abbreviation (12JUN, 1DEC)
	"WEEKDAY":  `\d?`,            // Day of week 1-7, often absent
	"STATION":  `\S{3}`,          // IATA city/airport code
	"ALPHA3":   `\D{3}`,          // IATA code in the detail listing
	"STATUS":   `\S{3}`,          // Segment status + count (SS1, HK2)
	"TIME4":    `\d{4}`,          // HHMM
	"AIRTIME":  `\d{1,2}\.\d{2}`, // H.MM or HH.MM
	"MILES":    `\d{2,4}?`,       // Great-circle distance in miles

	// Name elements.
	"NAME": `[a-zA-Z]{2,}`,

	// Fare elements.
	"FARE_TAG": `\w\d{1,2}`,          // Amount label (S1, N1, F1, Q1)
	"AMOUNT":   `\d{2,}(?:\.\d{2})?`, // Amount with optional cents

	// Record locator.
	"LOCATOR": `[a-zA-Z]{1,}`,
}

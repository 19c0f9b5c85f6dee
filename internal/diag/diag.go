// Package diag collects the warnings and the fatal error of one parse session.
package diag

import (
	"errors"
	"sort"
)

// Category groups warnings by what kind of value could not be trusted.
type Category string

const (
	CategoryAirline     Category = "airline"
	CategoryLocation    Category = "location"
	CategoryFoodType    Category = "foodType"
	CategoryAirlineType Category = "airlineType"
	CategoryStack       Category = "stack"
)

// categoryOrder fixes the order warnings are reported in.
var categoryOrder = map[Category]int{
	CategoryAirline:     0,
	CategoryLocation:    1,
	CategoryFoodType:    2,
	CategoryAirlineType: 3,
	CategoryStack:       4,
}

// Stack warning values raised by sale validation.
const (
	CountMismatch = "count-mismatch"
	NoPassengers  = "no-passengers"
	NoFlights     = "no-flights"
)

// Warning is an advisory diagnostic. It never blocks a result.
type Warning struct {
	Category Category `json:"category"`
	Value    string   `json:"value"`
}

// ErrInvalidReservation is the sentinel behind every fatal parse error.
var ErrInvalidReservation = errors.New("invalid reservation text")

// FatalError reports that the input is not a usable reservation text.
type FatalError struct {
	Dialect string
	Err     error
}

func (e *FatalError) Error() string {
	if e.Dialect == "" {
		return e.Err.Error()
	}
	return e.Dialect + ": " + e.Err.Error()
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal returns a FatalError for the given dialect wrapping ErrInvalidReservation.
func Fatal(dialect string) *FatalError {
	return &FatalError{Dialect: dialect, Err: ErrInvalidReservation}
}

// Sink accumulates warnings for a single parse session. It is not safe for
// concurrent use; each session owns its own Sink.
type Sink struct {
	warnings []Warning
	fatal    error
}

// Warn records a warning.
func (s *Sink) Warn(category Category, value string) {
	s.warnings = append(s.warnings, Warning{Category: category, Value: value})
}

// Add records already-built warnings.
func (s *Sink) Add(ws ...Warning) {
	s.warnings = append(s.warnings, ws...)
}

// Fail records the fatal error of the session. Only the first one is kept.
func (s *Sink) Fail(err error) {
	if s.fatal == nil {
		s.fatal = err
	}
}

// Err returns the fatal error, if any.
func (s *Sink) Err() error { return s.fatal }

// Len returns the number of recorded warnings.
func (s *Sink) Len() int { return len(s.warnings) }

// Warnings returns a copy of the warnings ordered by category, keeping the
// order of recording within a category.
func (s *Sink) Warnings() []Warning {
	out := make([]Warning, len(s.warnings))
	copy(out, s.warnings)
	Sort(out)
	return out
}

// Sort orders warnings by category, stable within a category. Unknown
// categories sort last.
func Sort(ws []Warning) {
	sort.SliceStable(ws, func(i, j int) bool {
		return rank(ws[i].Category) < rank(ws[j].Category)
	})
}

func rank(c Category) int {
	if r, ok := categoryOrder[c]; ok {
		return r
	}
	return len(categoryOrder)
}

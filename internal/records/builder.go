package records

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gds_parser/internal/diag"
	"gds_parser/internal/reference"
	"gds_parser/internal/rows"
)

// Builder resolves reference codes while building flights. A Builder holds
// no per-parse state; warnings go to the Sink of the caller's session.
type Builder struct {
	resolver reference.Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// NewBuilder creates a Builder. A nil resolver leaves every code
// unresolved; a nil logger uses slog.Default().
func NewBuilder(resolver reference.Resolver, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{resolver: resolver, logger: logger, now: time.Now}
}

// WithClock returns a copy of b that takes the year of segment dates from now.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	c := *b
	c.now = now
	return &c
}

// resolve looks up one code. Unresolved or failed lookups add a warning and
// return nil; they never stop the build.
func (b *Builder) resolve(ctx context.Context, sink *diag.Sink, kind reference.Kind, cat diag.Category, code string) *reference.ID {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	if b.resolver == nil {
		sink.Warn(cat, code)
		return nil
	}

	id, ok, err := b.resolver.Resolve(ctx, kind, code)
	if err != nil {
		b.logger.Warn("reference lookup failed",
			slog.String("kind", string(kind)),
			slog.String("code", code),
			slog.Any("error", err))
		sink.Warn(cat, code)
		return nil
	}
	if !ok {
		sink.Warn(cat, code)
		return nil
	}
	return &id
}

// BuildFlight builds a segment from a flight row.
func (b *Builder) BuildFlight(ctx context.Context, row rows.FlightRow, sink *diag.Sink) Flight {
	f := Flight{
		Order:           row.Order,
		AirlineCode:     row.Airline,
		FlightNumber:    FlightNumber(row.FlightToken),
		OriginCode:      row.Origin,
		DestinationCode: row.Destination,
		Day:             row.Weekday,
		Booking:         row.Booking,
		ReservationCode: ReservationCode(row.SystemInfo),
		IsEconomy:       IsEconomy(row.SystemInfo),
		IsBusiness:      false,
	}

	f.Airline = b.resolve(ctx, sink, reference.KindAirline, diag.CategoryAirline, row.Airline)
	f.Origin = b.resolve(ctx, sink, reference.KindLocation, diag.CategoryLocation, row.Origin)
	f.Destination = b.resolve(ctx, sink, reference.KindLocation, diag.CategoryLocation, row.Destination)

	// Both ends share the date token; arrival after midnight is not rolled over.
	year := b.now().UTC().Year()
	if t, ok := CombineDateTime(row.Date, row.TimeFrom, year); ok {
		f.Start = &t
	}
	if t, ok := CombineDateTime(row.Date, row.TimeTo, year); ok {
		f.End = &t
	}
	return f
}

// BuildDetailFlight builds a segment from a basic row and its detail row.
// A nil detail gives the same result as BuildFlight.
func (b *Builder) BuildDetailFlight(ctx context.Context, row rows.FlightRow, detail *rows.FlightDetailRow, sink *diag.Sink) Flight {
	f := b.BuildFlight(ctx, row, sink)
	if detail == nil {
		return f
	}

	f.FoodTypeCode = strings.TrimSpace(detail.FoodType)
	f.FoodType = b.resolve(ctx, sink, reference.KindFoodType, diag.CategoryFoodType, detail.FoodType)
	f.AircraftTypeCode = strings.TrimSpace(detail.AircraftType)
	f.AircraftType = b.resolve(ctx, sink, reference.KindAirplaneType, diag.CategoryAirlineType, detail.AircraftType)
	f.AirTime = AirTime(detail.AirTime)
	if km, ok := DistanceKm(detail.DistanceMiles); ok {
		f.DistanceKm.Decimal = km
		f.DistanceKm.Valid = true
	}
	return f
}

// BuildOfferFlights builds every basic segment of an offer, attaching the
// detail row with the same index when there is one.
func (b *Builder) BuildOfferFlights(ctx context.Context, basic []rows.FlightRow, second []rows.FlightDetailRow, sink *diag.Sink) []Flight {
	out := make([]Flight, 0, len(basic))
	for i, row := range basic {
		var detail *rows.FlightDetailRow
		if i < len(second) {
			detail = &second[i]
		}
		out = append(out, b.BuildDetailFlight(ctx, row, detail, sink))
	}
	return out
}

// BuildFlights builds every segment of a sale.
func (b *Builder) BuildFlights(ctx context.Context, flights []rows.FlightRow, sink *diag.Sink) []Flight {
	out := make([]Flight, 0, len(flights))
	for _, row := range flights {
		out = append(out, b.BuildFlight(ctx, row, sink))
	}
	return out
}

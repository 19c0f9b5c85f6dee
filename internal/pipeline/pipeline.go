// Package pipeline runs one message through extraction, metrics and the
// configured storage backends. It is shared by the CLI, the HTTP API and
// the NATS feed.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"gds_parser/internal/diag"
	"gds_parser/internal/extractor"
	"gds_parser/internal/gds"
	"gds_parser/internal/metrics"
	"gds_parser/internal/records"
	"gds_parser/internal/registry"
	"gds_parser/internal/storage"
)

// ParseLog records every parse with its raw text.
type ParseLog interface {
	Insert(p storage.InsertParams) (int64, error)
}

// EventSink receives one analytics event per parse.
type EventSink interface {
	Insert(ctx context.Context, ev storage.ParseEvent) error
}

// RecordStore persists the built records under an owning offer or sale.
type RecordStore interface {
	SaveOffer(ctx context.Context, code string, flights []records.Flight) (int64, error)
	SaveSale(ctx context.Context, code, reservationCode string, flights []records.Flight, passengers []records.Passenger) (int64, error)
}

// Pipeline extracts messages and fans the outcome out to the sinks. Every
// sink is optional.
type Pipeline struct {
	ex      *extractor.Extractor
	log     ParseLog
	events  EventSink
	records RecordStore
	logger  *slog.Logger
	now     func() time.Time
	eventID atomic.Uint64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithParseLog sets the parse log sink.
func WithParseLog(l ParseLog) Option { return func(p *Pipeline) { p.log = l } }

// WithEvents sets the analytics sink. Event ids continue after startID.
func WithEvents(s EventSink, startID uint64) Option {
	return func(p *Pipeline) {
		p.events = s
		p.eventID.Store(startID)
	}
}

// WithRecords sets the record store.
func WithRecords(r RecordStore) Option { return func(p *Pipeline) { p.records = r } }

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// New creates a Pipeline around ex.
func New(ex *extractor.Extractor, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{ex: ex, logger: logger, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// FromDB wires the open backends of db into pipeline options. ClickHouse
// event ids continue after the stored maximum.
func FromDB(ctx context.Context, db *storage.DB) ([]Option, error) {
	var opts []Option
	if db == nil {
		return opts, nil
	}
	if db.Log != nil {
		opts = append(opts, WithParseLog(db.Log))
	}
	if db.CH != nil {
		maxID, err := db.CH.MaxID(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithEvents(db.CH, maxID))
	}
	if db.PG != nil {
		opts = append(opts, WithRecords(db.PG))
	}
	return opts, nil
}

// Extractor returns the underlying extractor.
func (p *Pipeline) Extractor() *extractor.Extractor { return p.ex }

// Outcome classifies a parse error for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, diag.ErrInvalidReservation):
		return metrics.OutcomeFatal
	default:
		return metrics.OutcomeError
	}
}

// Process extracts msg and records the outcome. Storage failures are
// logged and counted but never change the returned extraction or error.
func (p *Pipeline) Process(ctx context.Context, msg *gds.Message) (*extractor.Extraction, error) {
	start := p.now()
	dialect := registry.DialectOf(msg)

	ext, err := p.ex.Extract(ctx, msg)

	metrics.ObserveParse(string(dialect), Outcome(err), p.now().Sub(start))
	if ext != nil {
		metrics.ObserveStats(ext.Stats)
		metrics.ObserveWarnings(ext.Warnings)
	}

	p.persist(ctx, start, msg, dialect, ext, err)
	return ext, err
}

func (p *Pipeline) persist(ctx context.Context, ts time.Time, msg *gds.Message, dialect gds.Dialect, ext *extractor.Extraction, parseErr error) {
	if p.log != nil {
		params := storage.InsertParams{
			Timestamp: ts,
			Dialect:   string(dialect),
			MessageID: int64(msg.ID),
			Source:    msg.Source,
			RawText:   msg.Text,
		}
		if ext != nil {
			params.ReservationCode = ext.ReservationCode
			params.FlightKeys = ext.FlightKeys()
			params.ParsedData = ext
			params.Warnings = ext.Warnings
			params.Dropped = ext.Dropped()
		}
		if parseErr != nil {
			params.Error = parseErr.Error()
		}
		if _, err := p.log.Insert(params); err != nil {
			p.storageFailed("sqlite", err)
		}
	}

	if p.events != nil {
		ev := storage.EventFromExtraction(p.eventID.Add(1), ts, string(dialect), ext, parseErr)
		ev.Source = msg.Source
		if err := p.events.Insert(ctx, ev); err != nil {
			p.storageFailed("clickhouse", err)
		}
	}

	if p.records != nil && ext != nil {
		var err error
		switch {
		case ext.Offer != nil:
			_, err = p.records.SaveOffer(ctx, ext.Offer.Code, ext.Flights)
		case ext.Sale != nil:
			_, err = p.records.SaveSale(ctx, ext.Sale.Code, ext.ReservationCode, ext.Flights, ext.Passengers)
		}
		if err != nil {
			p.storageFailed("postgres", err)
		}
	}
}

func (p *Pipeline) storageFailed(backend string, err error) {
	metrics.IncStorageError(backend)
	p.logger.Error("storage write failed", slog.String("backend", backend), slog.Any("error", err))
}

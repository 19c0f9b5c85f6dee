// Package feed consumes reservation texts from NATS, runs them through the
// pipeline and optionally publishes the extraction.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"gds_parser/internal/extractor"
	"gds_parser/internal/gds"
	"gds_parser/internal/metrics"
	"gds_parser/internal/pipeline"
)

// Config selects the subjects and queue group.
type Config struct {
	URL           string
	Subject       string
	QueueGroup    string
	ResultSubject string // Empty disables publishing.
}

// Publisher is the part of a NATS connection the handler needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Result is the payload published for every processed message.
type Result struct {
	MessageID  int64                 `json:"message_id"`
	Dialect    gds.Dialect           `json:"dialect"`
	Extraction *extractor.Extraction `json:"extraction,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Handler turns raw feed payloads into pipeline runs.
type Handler struct {
	pipeline      *pipeline.Pipeline
	pub           Publisher
	resultSubject string
	logger        *slog.Logger
}

// NewHandler creates a Handler. pub may be nil when resultSubject is empty.
func NewHandler(p *pipeline.Pipeline, pub Publisher, resultSubject string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{pipeline: p, pub: pub, resultSubject: resultSubject, logger: logger}
}

// Handle processes one payload. Undecodable payloads are counted and
// dropped; parse failures are published like successes.
func (h *Handler) Handle(ctx context.Context, data []byte) error {
	metrics.IncFeedMessage()

	msg := gds.Decode(data)
	if msg == nil {
		metrics.IncFeedError("decode")
		h.logger.Warn("feed payload without reservation text", slog.Int("bytes", len(data)))
		return fmt.Errorf("decode: no reservation text")
	}
	if msg.Source == "" {
		msg.Source = "nats"
	}

	ext, err := h.pipeline.Process(ctx, msg)
	if err != nil {
		h.logger.Info("reservation rejected",
			slog.Int64("message_id", int64(msg.ID)),
			slog.Any("error", err))
	}

	if h.resultSubject == "" || h.pub == nil {
		return nil
	}

	res := Result{MessageID: int64(msg.ID), Dialect: msg.Dialect, Extraction: ext}
	if ext != nil {
		res.Dialect = ext.Dialect
	}
	if err != nil {
		res.Error = err.Error()
	}

	payload, merr := json.Marshal(res)
	if merr != nil {
		metrics.IncFeedError("encode")
		return fmt.Errorf("encode result: %w", merr)
	}
	if perr := h.pub.Publish(h.resultSubject, payload); perr != nil {
		metrics.IncFeedError("publish")
		return fmt.Errorf("publish result: %w", perr)
	}
	return nil
}

// Run connects to NATS, joins the queue group and handles messages until
// ctx is cancelled. The subscription is drained before returning.
func Run(ctx context.Context, cfg Config, p *pipeline.Pipeline, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("gds_parser"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer nc.Close()

	h := NewHandler(p, nc, cfg.ResultSubject, logger)

	sub, err := nc.QueueSubscribe(cfg.Subject, cfg.QueueGroup, func(m *nats.Msg) {
		if err := h.Handle(ctx, m.Data); err != nil {
			logger.Debug("feed message dropped", slog.String("subject", m.Subject), slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", cfg.Subject, err)
	}

	logger.Info("listening for reservations",
		slog.String("url", nc.ConnectedUrl()),
		slog.String("subject", cfg.Subject),
		slog.String("queue", cfg.QueueGroup))

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		return fmt.Errorf("drain subscription: %w", err)
	}
	if err := nc.Drain(); err != nil {
		return fmt.Errorf("drain connection: %w", err)
	}
	return nil
}

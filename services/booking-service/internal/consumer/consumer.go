// Package consumer runs Kafka consumer loops with inbox deduplication.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/inbox"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

type Consumer struct {
	reader  kafkax.MessageReader
	logger  *slog.Logger
	inbox   inbox.Store
	handler Handler
	backoff time.Duration
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, inboxStore inbox.Store, cfg Config, handler Handler) *Consumer {
	reader := kafkax.NewReader(kafkax.SplitBrokers(cfg.Brokers), cfg.GroupID, cfg.Topic)
	return NewWithReader(logger, inboxStore, reader, handler)
}

func NewWithReader(logger *slog.Logger, inboxStore inbox.Store, reader kafkax.MessageReader, handler Handler) *Consumer {
	return &Consumer{
		reader:  reader,
		logger:  logger,
		inbox:   inboxStore,
		handler: handler,
		backoff: time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}

		if err := c.Handle(ctx, msg); err != nil {
			c.logger.Error("handler error", "err", err, "topic", msg.Topic, "offset", msg.Offset)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "offset", msg.Offset)
		}
	}
}

// Handle processes one message at most once per event id. The event is only
// recorded in the inbox after the handler succeeded.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	seen, err := c.inbox.Processed(ctxSpan, meta.EventID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("inbox lookup: %w", err)
	}
	if seen {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}

	if err := c.handler(ctxSpan, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if _, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType); err != nil {
		span.RecordError(err)
		return fmt.Errorf("inbox record: %w", err)
	}
	return nil
}

// InvalidateSchedule drops the cached calendar of the practitioner named in a
// working-hours change.
func InvalidateSchedule(inv booking.Invalidator, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt booking.WorkingHoursChanged
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			// A malformed payload will never parse; drop it.
			logger.Warn("invalid working hours event", "err", err, "offset", msg.Offset)
			return nil
		}
		if evt.PractitionerID == "" {
			return nil
		}
		if err := inv.Invalidate(ctx, evt.PractitionerID); err != nil {
			return err
		}
		logger.Debug("schedule cache invalidated", "practitioner_id", evt.PractitionerID)
		return nil
	}
}

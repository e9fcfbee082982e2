// Package consumer wraps the franz-go consumer group client behind a small
// handler interface. Handlers are written assuming at-least-once delivery:
// a message is committed only after the handler returns nil, so redelivery is
// normal, not exceptional.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tunelink/internal/platform/config"
)

// Message is a transport-agnostic view of a consumed record.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Partition int32
	Offset    int64
}

// Handler processes a single message. Returning an error leaves the message
// uncommitted so the group redelivers it.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Consumer runs a consumer group poll loop and dispatches records to a handler.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New builds a consumer group client subscribed to the given topics.
func New(cfg config.KafkaConfig, group string, topics []string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{
		client:  client,
		handler: handler,
		logger:  logger,
		tracer:  otel.Tracer("tunelink/platform/kafka"),
	}, nil
}

// Run polls until the context is cancelled. Each record is handled and, on
// success, committed individually; handler failures are logged and the record
// stays uncommitted for redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()

	for {
		fetches := c.client.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				c.logger.ErrorContext(ctx, "kafka fetch error",
					"topic", fe.Topic,
					"partition", fe.Partition,
					"error", fe.Err,
				)
			}
		}

		fetches.EachRecord(func(record *kgo.Record) {
			if err := c.handle(ctx, record); err != nil {
				c.logger.ErrorContext(ctx, "message handling failed, leaving uncommitted",
					"topic", record.Topic,
					"partition", record.Partition,
					"offset", record.Offset,
					"error", err,
				)
				return
			}
			if err := c.client.CommitRecords(ctx, record); err != nil {
				c.logger.ErrorContext(ctx, "commit failed",
					"topic", record.Topic,
					"offset", record.Offset,
					"error", err,
				)
			}
		})
	}
}

func (c *Consumer) handle(ctx context.Context, record *kgo.Record) error {
	ctx, span := c.tracer.Start(ctx, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.destination", record.Topic),
			attribute.Int64("messaging.kafka.offset", record.Offset),
		),
	)
	defer span.End()

	headers := make(map[string]string, len(record.Headers))
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}

	return c.handler.Handle(ctx, &Message{
		Topic:     record.Topic,
		Key:       record.Key,
		Value:     record.Value,
		Headers:   headers,
		Partition: record.Partition,
		Offset:    record.Offset,
	})
}

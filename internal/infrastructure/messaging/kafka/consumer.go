package kafka

import (
	"context"
	"encoding/base64"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/pkg/errors"
)

// Handler processes one decoded envelope. A returned error triggers retries
// and eventually dead-lettering; it never stops the consume loop.
type Handler func(ctx context.Context, envelope *EventEnvelope) error

// ConsumerConfig holds reader tunables.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	Topic           string
	StartOffset     string // "earliest" | "latest"
	MaxHandlerTries int
	RetryBackoff    time.Duration
	DeadLetterTopic string
}

// readerInterface abstracts kafka.Reader for tests.
type readerInterface interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer runs a fetch/handle/commit loop over one topic. Messages whose
// handler fails every retry go to the dead-letter topic (when configured)
// and are then committed so the partition keeps moving.
type Consumer struct {
	reader  readerInterface
	dlq     *Producer
	cfg     ConsumerConfig
	handler Handler
	log     logging.Logger
}

// NewConsumer builds a group consumer for one topic. dlq may be nil, in
// which case poisoned messages are dropped after logging.
func NewConsumer(cfg ConsumerConfig, handler Handler, dlq *Producer, log logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.Validation("kafka consumer requires at least one broker")
	}
	if cfg.GroupID == "" {
		return nil, errors.Validation("kafka consumer requires a group id")
	}
	if cfg.Topic == "" {
		return nil, errors.Validation("kafka consumer requires a topic")
	}
	if handler == nil {
		return nil, errors.Validation("kafka consumer requires a handler")
	}
	if cfg.MaxHandlerTries <= 0 {
		cfg.MaxHandlerTries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	startOffset := kafkago.LastOffset
	if cfg.StartOffset == "earliest" {
		startOffset = kafkago.FirstOffset
	}
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: startOffset,
		MinBytes:    1,
		MaxBytes:    10 << 20,
	})
	return &Consumer{
		reader:  reader,
		dlq:     dlq,
		cfg:     cfg,
		handler: handler,
		log:     log.Named("kafka.consumer"),
	}, nil
}

// newConsumerWithReader injects a fake reader for tests.
func newConsumerWithReader(cfg ConsumerConfig, reader readerInterface, handler Handler, dlq *Producer, log logging.Logger) *Consumer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.MaxHandlerTries <= 0 {
		cfg.MaxHandlerTries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	return &Consumer{reader: reader, dlq: dlq, cfg: cfg, handler: handler, log: log.Named("kafka.consumer")}
}

// Run consumes until ctx is cancelled. It returns nil on cancellation and
// an error only when the reader itself fails irrecoverably.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeExternalService, "kafka fetch failed")
		}

		c.process(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("commit failed", logging.Err(err),
				logging.Int64("offset", msg.Offset))
		}
	}
}

// process decodes and handles one message with bounded retries.
func (c *Consumer) process(ctx context.Context, msg kafkago.Message) {
	envelope, err := DecodeEnvelope(msg.Value)
	if err != nil {
		c.log.Error("undecodable message sent to dead letter", logging.Err(err),
			logging.Int64("offset", msg.Offset))
		c.deadLetter(ctx, msg.Key, msg.Value)
		return
	}

	for attempt := 1; attempt <= c.cfg.MaxHandlerTries; attempt++ {
		if err = c.handler(ctx, envelope); err == nil {
			return
		}
		c.log.Warn("handler failed",
			logging.String("event_type", envelope.EventType),
			logging.Int("attempt", attempt),
			logging.Err(err))
		if attempt == c.cfg.MaxHandlerTries {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.RetryBackoff * time.Duration(attempt)):
		}
	}

	c.log.Error("handler exhausted retries, dead-lettering",
		logging.String("event_id", envelope.EventID),
		logging.String("event_type", envelope.EventType))
	c.deadLetter(ctx, msg.Key, msg.Value)
}

func (c *Consumer) deadLetter(ctx context.Context, key, value []byte) {
	if c.dlq == nil || c.cfg.DeadLetterTopic == "" {
		return
	}
	// The value may be the very bytes that failed to decode, so it cannot
	// be embedded as raw JSON.
	envelope, err := NewEnvelope("visibility.deadletter", DeadLetterPayload{
		Raw: base64.StdEncoding.EncodeToString(value),
	})
	if err != nil {
		c.log.Error("dead letter envelope failed", logging.Err(err))
		return
	}
	if err := c.dlq.Publish(ctx, c.cfg.DeadLetterTopic, string(key), envelope); err != nil {
		c.log.Error("dead letter publish failed", logging.Err(err))
	}
}

// Close shuts the reader down.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

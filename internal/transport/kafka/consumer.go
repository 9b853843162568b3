// Package kafka consumes record change events from a Kafka topic with
// segmentio/kafka-go. Offsets are committed only after a message is handled
// and, when the handler buffers its work, after that buffer is flushed.
package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/indexsync/internal/domain"
	"github.com/kailas-cloud/indexsync/internal/logger"
)

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key, value []byte) error

// Flusher makes buffered handler work durable.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Config selects the topic and consumer group.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string

	// Flusher, when set, holds offsets back until Flush succeeds. A flush
	// runs every FlushEvery handled messages and after FlushInterval
	// without new messages.
	Flusher       Flusher
	FlushEvery    int
	FlushInterval time.Duration
}

const (
	defaultFlushEvery    = 100
	defaultFlushInterval = time.Second
	shutdownFlushTimeout = 10 * time.Second
)

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads change events and dispatches them to a MessageHandler.
type Consumer struct {
	reader  reader
	log     *zap.Logger
	handler MessageHandler
	retrier *retrier.Retrier

	flusher       Flusher
	flushEvery    int
	flushInterval time.Duration
	pending       []kafka.Message
}

// NewConsumer creates a Consumer for cfg.Topic.
func NewConsumer(cfg Config, handler MessageHandler, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	return newConsumer(r, cfg, handler, log, retrier.ExponentialBackoff(3, 200*time.Millisecond))
}

func newConsumer(r reader, cfg Config, handler MessageHandler, log *zap.Logger, backoff []time.Duration) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Consumer{
		reader:        r,
		log:           log.With(zap.String("component", "kafka-consumer")),
		handler:       handler,
		retrier:       retrier.New(backoff, permanentClassifier{}),
		flusher:       cfg.Flusher,
		flushEvery:    cfg.FlushEvery,
		flushInterval: cfg.FlushInterval,
	}
	if c.flushEvery <= 0 {
		c.flushEvery = defaultFlushEvery
	}
	if c.flushInterval <= 0 {
		c.flushInterval = defaultFlushInterval
	}
	return c
}

// Run consumes until ctx is cancelled. A message is retried on transient
// failures; malformed messages are logged and skipped.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("consumer started")
	defer c.reader.Close()

	for {
		msg, err := c.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("consumer stopping", zap.Error(ctx.Err()))
				return c.shutdown(ctx)
			}
			if errors.Is(err, context.DeadlineExceeded) {
				if err := c.flushAndCommit(ctx); err != nil {
					return err
				}
				continue
			}
			c.log.Error("failed to fetch message", zap.Error(err))
			continue
		}

		fields := []zap.Field{
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.ByteString("key", msg.Key),
		}
		mctx := logger.ContextWithLogger(ctx, c.log.With(fields...))

		err = c.retrier.RunCtx(mctx, func(ctx context.Context) error {
			return c.handler(ctx, msg.Key, msg.Value)
		})
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrValidation):
			c.log.Warn("skipping malformed message", append(fields, zap.Error(err))...)
		case ctx.Err() != nil:
			return c.shutdown(ctx)
		default:
			// Not committed: the group resumes here after a restart.
			c.log.Error("failed to process message", append(fields, zap.Error(err))...)
			if ferr := c.shutdown(ctx); ferr != nil {
				return errors.Join(err, ferr)
			}
			return err
		}

		if c.flusher == nil {
			c.commit(ctx, msg)
			continue
		}
		c.pending = append(c.pending, msg)
		if len(c.pending) >= c.flushEvery {
			if err := c.flushAndCommit(ctx); err != nil {
				return err
			}
		}
	}
}

// fetch waits for the next message. With a flusher and pending offsets the
// wait is bounded by flushInterval.
func (c *Consumer) fetch(ctx context.Context) (kafka.Message, error) {
	if c.flusher == nil || len(c.pending) == 0 {
		return c.reader.FetchMessage(ctx)
	}
	fctx, cancel := context.WithTimeout(ctx, c.flushInterval)
	defer cancel()
	return c.reader.FetchMessage(fctx)
}

// flushAndCommit flushes the handler's buffer and then commits every
// pending offset. On failure nothing is committed.
func (c *Consumer) flushAndCommit(ctx context.Context) error {
	if c.flusher == nil || len(c.pending) == 0 {
		return nil
	}
	if err := c.retrier.RunCtx(ctx, c.flusher.Flush); err != nil {
		c.log.Error("failed to flush buffered messages",
			zap.Int("pending", len(c.pending)), zap.Error(err))
		return err
	}
	c.commit(ctx, c.pending...)
	c.pending = c.pending[:0]
	return nil
}

// shutdown flushes and commits what was handled before the consumer stops.
func (c *Consumer) shutdown(ctx context.Context) error {
	if len(c.pending) == 0 {
		return nil
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
	defer cancel()
	return c.flushAndCommit(sctx)
}

func (c *Consumer) commit(ctx context.Context, msgs ...kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		if ctx.Err() != nil {
			return
		}
		last := msgs[len(msgs)-1]
		c.log.Error("failed to commit messages",
			zap.Int("count", len(msgs)),
			zap.Int("partition", last.Partition),
			zap.Int64("offset", last.Offset),
			zap.Error(err),
		)
	}
}

// permanentClassifier does not retry validation errors.
type permanentClassifier struct{}

func (permanentClassifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case errors.Is(err, domain.ErrValidation):
		return retrier.Fail
	}
	return retrier.Retry
}

package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler processes one fetched message. A nil return means the
// effect is durably applied and the message's offset may be committed; a
// non-nil return leaves the offset uncommitted so the message is redelivered.
type MessageHandler func(ctx context.Context, msg kafka.Message) error

type Consumer interface {
	Start(ctx context.Context, handler MessageHandler) error
	Stop()
}

// messageReader is the slice of kafka.Reader the consumer loop depends on.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaConsumer struct {
	reader     messageReader
	logger     *zap.Logger
	topic      string
	group      string
	retryDelay time.Duration
	cancel     context.CancelFunc
}

func NewConsumer(brokerURLs []string, groupID, topic string, logger *zap.Logger) Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           brokerURLs,
		GroupID:           groupID,
		Topic:             topic,
		MinBytes:          10e3,
		MaxBytes:          10e6,
		ReadBatchTimeout:  1 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		Logger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:       kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
	})

	return &kafkaConsumer{
		reader:     reader,
		logger:     logger,
		topic:      topic,
		group:      groupID,
		retryDelay: 1 * time.Second,
	}
}

func (c *kafkaConsumer) Start(ctx context.Context, handler MessageHandler) error {
	consumerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.logger.Info("Kafka consumer starting",
		zap.String("topic", c.topic),
		zap.String("group_id", c.group),
	)

	for {
		select {
		case <-consumerCtx.Done():
			c.logger.Info("Kafka consumer context cancelled, stopping reader.")
			return c.reader.Close()
		default:
			msg, err := c.reader.FetchMessage(consumerCtx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				c.logger.Error("Failed to fetch message from Kafka", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}

			c.logger.Debug("Received Kafka message",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.String("key", string(msg.Key)),
			)

			if !c.processMessage(consumerCtx, msg, handler) {
				c.logger.Info("Kafka consumer context cancelled mid-delivery, stopping reader.")
				return c.reader.Close()
			}
		}
	}
}

// processMessage drives one fetched message to a durable outcome. The handler
// is re-invoked on the same message until it returns nil: fetching the next
// message instead would let a later commit move the group's watermark past
// this one and lose it. Returns false when the context ended first; the
// offset stays uncommitted and the message is redelivered.
func (c *kafkaConsumer) processMessage(ctx context.Context, msg kafka.Message, handler MessageHandler) bool {
	for {
		handlerErr := handler(ctx, msg)
		if handlerErr == nil {
			break
		}
		c.logger.Error("Error handling Kafka message, holding offset and retrying",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(handlerErr),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.retryDelay):
		}
	}

	if commitErr := c.reader.CommitMessages(ctx, msg); commitErr != nil {
		// An uncommitted offset only means redelivery; consumers dedup it.
		c.logger.Error("Failed to commit offset for Kafka message",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(commitErr),
		)
	} else {
		c.logger.Debug("Kafka message offset committed",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
	}
	return true
}

func (c *kafkaConsumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.logger.Info("Kafka consumer stop signal sent.")
}

// RunGroup starts n consumers in the same consumer group and blocks until all
// of them return. Each worker owns its own reader, so the broker spreads
// partitions across workers and a handler blocking on one partition never
// stalls delivery on another.
func RunGroup(ctx context.Context, n int, brokerURLs []string, groupID, topic string, handler MessageHandler, logger *zap.Logger) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		workerLogger := logger.With(zap.Int("worker", i))
		consumer := NewConsumer(brokerURLs, groupID, topic, workerLogger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Start(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
				workerLogger.Error("Kafka consumer stopped with error", zap.Error(err))
			}
		}()
	}
	wg.Wait()
}

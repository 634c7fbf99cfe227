package kafka

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Morgiver/invitation-core/config"
	logger "github.com/Morgiver/invitation-core/middleware/log"
)

// Headers added to messages moved to the dead letter topic.
const (
	HeaderError           = "x-error"
	HeaderOriginTopic     = "x-origin-topic"
	HeaderOriginPartition = "x-origin-partition"
	HeaderOriginOffset    = "x-origin-offset"
)

// MessageHandler processes one consumed message. A returned error triggers a
// retry; once retries run out the message goes to the dead letter topic.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// DeadLetterProducer is the part of Producer the consumer needs.
type DeadLetterProducer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers ...sarama.RecordHeader) (int32, int64, error)
	Close() error
}

// Consumer reads topics as a member of a consumer group.
type Consumer struct {
	consumerGroup sarama.ConsumerGroup
	config        *config.KafkaConfig
	handler       MessageHandler
	dlqProducer   DeadLetterProducer
	topics        []string
	logger        *logger.Logger

	ready     chan struct{}
	readyOnce sync.Once
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

type consumerGroupHandler struct {
	consumer *Consumer
}

// NewConsumer joins cfg.ConsumerGroup and opens a producer for the dead
// letter topic.
//
// Parameters:
//   - cfg: brokers, group name and retry settings
//   - topics: topics to subscribe to
//   - handler: called for every message
//   - log: may be nil
//
// Returns:
//   - *Consumer: the consumer, not yet started
//   - error: any error raised while connecting
func NewConsumer(cfg *config.KafkaConfig, topics []string, handler MessageHandler, log *logger.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	saramaConfig.Net.DialTimeout = 10 * time.Second
	saramaConfig.Net.ReadTimeout = 10 * time.Second
	saramaConfig.Net.WriteTimeout = 10 * time.Second
	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond
	saramaConfig.Metadata.Timeout = 10 * time.Second

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	dlqProducer, err := NewProducer(cfg, log)
	if err != nil {
		_ = consumerGroup.Close()
		return nil, fmt.Errorf("failed to create DLQ producer: %w", err)
	}
	return NewConsumerWithClients(consumerGroup, dlqProducer, cfg, topics, handler, log), nil
}

// NewConsumerWithClients builds a Consumer around existing clients.
func NewConsumerWithClients(group sarama.ConsumerGroup, dlq DeadLetterProducer, cfg *config.KafkaConfig, topics []string, handler MessageHandler, log *logger.Logger) *Consumer {
	return &Consumer{
		consumerGroup: group,
		config:        cfg,
		handler:       handler,
		dlqProducer:   dlq,
		topics:        topics,
		logger:        logger.OrNop(log).Named("kafka_consumer"),
		ready:         make(chan struct{}),
	}
}

// Start runs the consume loop in the background and blocks until the first
// session is set up or ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		handler := &consumerGroupHandler{consumer: c}
		for {
			if err := c.consumerGroup.Consume(ctx, c.topics, handler); err != nil {
				c.logger.ErrorContext(ctx, "consume session ended with error", zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	go func() {
		defer c.wg.Done()
		for {
			select {
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.ErrorContext(ctx, "consumer group error", zap.Error(err))
			case <-ctx.Done():
				return
			}
		}
	}()

	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels the consume loop, waits for it and closes both clients.
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	if err := c.consumerGroup.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer group: %w", err)
	}
	if err := c.dlqProducer.Close(); err != nil {
		return fmt.Errorf("failed to close DLQ producer: %w", err)
	}
	return nil
}

// Ready is closed once the first session has been set up.
func (c *Consumer) Ready() <-chan struct{} {
	return c.ready
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.consumer.readyOnce.Do(func() { close(h.consumer.ready) })
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			// An unfinished message stays unmarked, and so does everything
			// after it, so the next session starts from it again.
			if !h.consumer.process(session.Context(), message) {
				return nil
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// process runs the handler with retries and dead-letters the message when
// every attempt failed. It reports false when ctx ended before the message
// was either handled or dead-lettered; the caller must not commit it then.
func (c *Consumer) process(ctx context.Context, message *sarama.ConsumerMessage) bool {
	err := c.processWithRetry(ctx, message)
	if err == nil {
		return true
	}
	if ctx.Err() != nil {
		c.logger.WarnContext(ctx, "message left uncommitted on shutdown",
			zap.String("topic", message.Topic),
			zap.Int64("offset", message.Offset),
		)
		return false
	}
	if dlqErr := c.sendToDLQ(ctx, message, err); dlqErr != nil {
		c.logger.ErrorContext(ctx, "failed to send message to DLQ",
			zap.String("topic", message.Topic),
			zap.Int64("offset", message.Offset),
			zap.Error(dlqErr),
		)
	}
	return true
}

func (c *Consumer) processWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	maxRetries := c.config.Consumer.MaxRetries
	backoff := time.Duration(c.config.Consumer.RetryBackoffMs) * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.handler(ctx, message)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < maxRetries {
			c.logger.WarnContext(ctx, "message handling failed, retrying",
				zap.String("topic", message.Topic),
				zap.Int64("offset", message.Offset),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func (c *Consumer) sendToDLQ(ctx context.Context, message *sarama.ConsumerMessage, processingErr error) error {
	headers := []sarama.RecordHeader{
		{Key: []byte(HeaderError), Value: []byte(processingErr.Error())},
		{Key: []byte(HeaderOriginTopic), Value: []byte(message.Topic)},
		{Key: []byte(HeaderOriginPartition), Value: []byte(strconv.Itoa(int(message.Partition)))},
		{Key: []byte(HeaderOriginOffset), Value: []byte(strconv.FormatInt(message.Offset, 10))},
	}
	if _, _, err := c.dlqProducer.Produce(ctx, c.config.Topics.DLQ, message.Key, message.Value, headers...); err != nil {
		return err
	}

	c.logger.WarnContext(ctx, "message sent to DLQ",
		zap.String("topic", message.Topic),
		zap.Int32("partition", message.Partition),
		zap.Int64("offset", message.Offset),
		zap.Error(processingErr),
	)
	return nil
}

package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Morgiver/invitation-core/config"
	logger "github.com/Morgiver/invitation-core/middleware/log"
)

// Producer sends messages to Kafka through a synchronous sarama producer.
type Producer struct {
	producer sarama.SyncProducer
	config   *config.KafkaConfig
	logger   *logger.Logger
}

// NewProducer connects to the brokers in cfg.
//
// The producer is idempotent and waits for all in-sync replicas, so a message
// acknowledged here survives a broker failover.
//
// Parameters:
//   - cfg: broker addresses and retry settings
//   - log: may be nil
//
// Returns:
//   - *Producer: the connected producer
//   - error: any error raised while dialing the brokers
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewProducerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewProducerWithClient(producer, cfg, log), nil
}

// NewProducerWithClient wraps an existing sarama producer, such as the one from
// sarama/mocks.
func NewProducerWithClient(producer sarama.SyncProducer, cfg *config.KafkaConfig, log *logger.Logger) *Producer {
	return &Producer{
		producer: producer,
		config:   cfg,
		logger:   logger.OrNop(log).Named("kafka_producer"),
	}
}

func NewProducerConfig(cfg *config.KafkaConfig) *sarama.Config {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = cfg.Producer.MaxRetries
	saramaConfig.Producer.Retry.Backoff = time.Duration(cfg.Producer.RetryBackoffMs) * time.Millisecond
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	saramaConfig.Net.DialTimeout = 10 * time.Second
	saramaConfig.Net.ReadTimeout = 10 * time.Second
	saramaConfig.Net.WriteTimeout = 10 * time.Second
	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond
	saramaConfig.Metadata.Timeout = 10 * time.Second
	return saramaConfig
}

// Produce sends one message and waits for the broker acknowledgement.
//
// Parameters:
//   - ctx: checked before sending; sarama's sync producer cannot be interrupted
//   - topic: destination topic
//   - key: partitioning key, nil for round robin
//   - value: message payload
//   - headers: optional record headers
//
// Returns:
//   - partition, offset: where the message was written
//   - err: any send error
func (p *Producer) Produce(ctx context.Context, topic string, key, value []byte, headers ...sarama.RecordHeader) (partition int32, offset int64, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Value:   sarama.ByteEncoder(value),
		Headers: headers,
	}
	if key != nil {
		msg.Key = sarama.ByteEncoder(key)
	}

	partition, offset, err = p.producer.SendMessage(msg)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to send message to topic %s: %w", topic, err)
	}
	p.logger.DebugContext(ctx, "message produced",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return partition, offset, nil
}

// ProduceWithRetry retries Produce on top of sarama's own retries, doubling
// the configured backoff after each failed attempt.
func (p *Producer) ProduceWithRetry(ctx context.Context, topic string, key, value []byte, maxRetries int, headers ...sarama.RecordHeader) (partition int32, offset int64, err error) {
	var lastErr error
	backoff := time.Duration(p.config.Producer.RetryBackoffMs) * time.Millisecond
	for attempt := 0; attempt <= maxRetries; attempt++ {
		partition, offset, err = p.Produce(ctx, topic, key, value, headers...)
		if err == nil {
			return partition, offset, nil
		}
		if ctx.Err() != nil {
			return 0, 0, ctx.Err()
		}
		lastErr = err

		if attempt < maxRetries {
			p.logger.WarnContext(ctx, "produce failed, retrying",
				zap.String("topic", topic),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if err := sleep(ctx, backoff); err != nil {
				return 0, 0, err
			}
			backoff *= 2
		}
	}
	return 0, 0, fmt.Errorf("failed to send message after %d attempts: %w", maxRetries+1, lastErr)
}

// Close flushes and closes the underlying producer.
func (p *Producer) Close() error {
	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			return fmt.Errorf("failed to close kafka producer: %w", err)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

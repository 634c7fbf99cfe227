package events

import (
	"context"

	"github.com/IBM/sarama"

	"github.com/Morgiver/invitation-core/internal/domain"
)

// HeaderKind carries the event kind so consumers can filter without decoding.
const HeaderKind = "event-kind"

// Producer is satisfied by *kafka.Producer.
type Producer interface {
	ProduceWithRetry(ctx context.Context, topic string, key, value []byte, maxRetries int, headers ...sarama.RecordHeader) (int32, int64, error)
}

// KafkaForwarder republishes bus events to a Kafka topic keyed by invitation
// id, so all events of one invitation land on the same partition in order.
type KafkaForwarder struct {
	producer   Producer
	topic      string
	maxRetries int
}

// NewKafkaForwarder retries each send up to maxRetries times after the
// first attempt.
func NewKafkaForwarder(producer Producer, topic string, maxRetries int) *KafkaForwarder {
	return &KafkaForwarder{producer: producer, topic: topic, maxRetries: max(0, maxRetries)}
}

func (f *KafkaForwarder) Handle(ctx context.Context, event domain.Event) error {
	value, err := Encode(event)
	if err != nil {
		return err
	}
	_, _, err = f.producer.ProduceWithRetry(ctx, f.topic, []byte(event.InvitationID()), value, f.maxRetries,
		sarama.RecordHeader{Key: []byte(HeaderKind), Value: []byte(event.Kind())})
	return err
}

package events

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	logger "github.com/Morgiver/invitation-core/middleware/log"
)

// AuditHandler returns a Kafka message handler that decodes each envelope and
// writes it to the audit log. Undecodable messages return an error so the
// consumer retries and then dead-letters them.
func AuditHandler(log *logger.Logger) func(ctx context.Context, message *sarama.ConsumerMessage) error {
	log = logger.OrNop(log).Named("audit")
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		event, err := Decode(message.Value)
		if err != nil {
			return fmt.Errorf("offset %d: %w", message.Offset, err)
		}
		log.InfoContext(ctx, "invitation event",
			zap.String("kind", string(event.Kind())),
			zap.String("invitation_id", event.InvitationID()),
			zap.Time("occurred_at", event.OccurredAt()),
			zap.Int32("partition", message.Partition),
			zap.Int64("offset", message.Offset),
			zap.ByteString("payload", message.Value),
		)
		return nil
	}
}

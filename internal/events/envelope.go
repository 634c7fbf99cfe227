package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Morgiver/invitation-core/internal/domain"
)

// Envelope is the wire form shared by the Kafka and Redis forwarders.
type Envelope struct {
	Kind         domain.EventKind `json:"kind"`
	InvitationID string           `json:"invitation_id"`
	OccurredAt   time.Time        `json:"occurred_at"`
	Payload      json.RawMessage  `json:"payload"`
}

func Encode(event domain.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", event.Kind(), err)
	}
	return json.Marshal(Envelope{
		Kind:         event.Kind(),
		InvitationID: event.InvitationID(),
		OccurredAt:   event.OccurredAt().UTC(),
		Payload:      payload,
	})
}

// Decode parses an envelope back into its concrete event type.
func Decode(data []byte) (domain.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	var (
		event domain.Event
		err   error
	)
	switch env.Kind {
	case domain.KindCreated:
		event, err = decodePayload[domain.Created](env.Payload)
	case domain.KindUsed:
		event, err = decodePayload[domain.Used](env.Payload)
	case domain.KindRevoked:
		event, err = decodePayload[domain.Revoked](env.Payload)
	case domain.KindLimitReached:
		event, err = decodePayload[domain.LimitReached](env.Payload)
	case domain.KindExpired:
		event, err = decodePayload[domain.Expired](env.Payload)
	default:
		return nil, fmt.Errorf("unknown event kind %q", env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", env.Kind, err)
	}
	return event, nil
}

func decodePayload[T domain.Event](payload json.RawMessage) (domain.Event, error) {
	var event T
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	return event, nil
}

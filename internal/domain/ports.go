package domain

import (
	"context"
	"time"
)

// InvitationRepository is the persistence contract the service depends on.
//
// Finders return (nil, nil) when nothing matches. Implementations are not
// required to guard against two callers racing between a load and a save of
// the same invitation; last writer wins unless the backend adds its own check.
type InvitationRepository interface {
	// Save inserts or updates. Inserting a new id whose code collides
	// case-insensitively with another invitation fails with ErrAlreadyExists.
	Save(ctx context.Context, inv *Invitation) (*Invitation, error)
	FindByID(ctx context.Context, id string) (*Invitation, error)
	FindByCode(ctx context.Context, code Code) (*Invitation, error)
	ExistsByCode(ctx context.Context, code Code) (bool, error)
	// FindByCreator and FindByStatus order results newest-created first.
	FindByCreator(ctx context.Context, userID string) ([]*Invitation, error)
	FindByStatus(ctx context.Context, status Status) ([]*Invitation, error)
	// FindExpired returns invitations of any status whose expiry is at or
	// before at, latest expiry first.
	FindExpired(ctx context.Context, at time.Time) ([]*Invitation, error)
	Delete(ctx context.Context, id string) (bool, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)
}

// EventPublisher delivers events synchronously. Delivery failures are the
// publisher's to contain; they never reach the caller.
type EventPublisher interface {
	Publish(ctx context.Context, event Event)
}

type EventHandler func(ctx context.Context, event Event) error

// EventBus fans an event out to the handlers subscribed to its kind, in
// registration order.
type EventBus interface {
	EventPublisher
	Subscribe(kind EventKind, handler EventHandler)
}

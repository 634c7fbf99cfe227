package events

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/Morgiver/invitation-core/internal/domain"
	logger "github.com/Morgiver/invitation-core/middleware/log"
)

// Bus is the in-process domain.EventBus. Handlers run synchronously on the
// publishing goroutine; an error or panic in one handler is logged and does
// not stop the others.
type Bus struct {
	mu        sync.RWMutex
	handlers  map[domain.EventKind][]domain.EventHandler
	record    bool
	published []domain.Event
	logger    *logger.Logger
}

var _ domain.EventBus = (*Bus)(nil)

func NewBus(log *logger.Logger) *Bus {
	return &Bus{
		handlers: make(map[domain.EventKind][]domain.EventHandler),
		logger:   logger.OrNop(log).Named("event_bus"),
	}
}

// NewRecordingBus is NewBus that also keeps every published event for
// PublishedEvents. The history is unbounded; use it in tests only.
func NewRecordingBus(log *logger.Logger) *Bus {
	b := NewBus(log)
	b.record = true
	return b
}

func (b *Bus) Subscribe(kind domain.EventKind, handler domain.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], handler)
}

// SubscribeAll registers handler for every event kind.
func (b *Bus) SubscribeAll(handler domain.EventHandler) {
	for _, kind := range domain.EventKinds {
		b.Subscribe(kind, handler)
	}
}

func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	b.mu.Lock()
	if b.record {
		b.published = append(b.published, event)
	}
	handlers := slices.Clone(b.handlers[event.Kind()])
	b.mu.Unlock()

	for _, handler := range handlers {
		if err := b.dispatch(ctx, handler, event); err != nil {
			b.logger.ErrorContext(ctx, "event handler failed",
				zap.String("kind", string(event.Kind())),
				zap.String("invitation_id", event.InvitationID()),
				zap.Error(err),
			)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, handler domain.EventHandler, event domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, event)
}

// PublishedEvents returns every event published since the last Clear, in
// order. It is always empty unless the bus was built by NewRecordingBus.
func (b *Bus) PublishedEvents() []domain.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.published)
}

func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = nil
}

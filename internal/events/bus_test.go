package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Morgiver/invitation-core/internal/domain"
)

var eventTime = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func createdEvent(id string) domain.Created {
	limit := 5
	return domain.Created{
		ID:         id,
		Code:       "WELCOME1",
		CreatedBy:  "user-1",
		CreatedAt:  eventTime,
		UsageLimit: &limit,
		Metadata:   map[string]any{"campaign": "spring"},
	}
}

func TestBus_DispatchesByKindInOrder(t *testing.T) {
	bus := NewBus(nil)
	var calls []string
	record := func(name string) domain.EventHandler {
		return func(context.Context, domain.Event) error {
			calls = append(calls, name)
			return nil
		}
	}
	bus.Subscribe(domain.KindCreated, record("first"))
	bus.Subscribe(domain.KindCreated, record("second"))
	bus.Subscribe(domain.KindRevoked, record("revoked"))

	bus.Publish(context.Background(), createdEvent("inv-1"))

	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestBus_HandlerFailuresAreContained(t *testing.T) {
	bus := NewRecordingBus(nil)
	reached := false
	bus.Subscribe(domain.KindCreated, func(context.Context, domain.Event) error {
		return errors.New("broken handler")
	})
	bus.Subscribe(domain.KindCreated, func(context.Context, domain.Event) error {
		panic("worse handler")
	})
	bus.Subscribe(domain.KindCreated, func(context.Context, domain.Event) error {
		reached = true
		return nil
	})

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), createdEvent("inv-1"))
	})
	assert.True(t, reached)
	assert.Len(t, bus.PublishedEvents(), 1)
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus(nil)
	var kinds []domain.EventKind
	bus.SubscribeAll(func(_ context.Context, e domain.Event) error {
		kinds = append(kinds, e.Kind())
		return nil
	})

	ctx := context.Background()
	bus.Publish(ctx, createdEvent("inv-1"))
	bus.Publish(ctx, domain.Revoked{ID: "inv-1", RevokedAt: eventTime})

	assert.Equal(t, []domain.EventKind{domain.KindCreated, domain.KindRevoked}, kinds)
}

func TestBus_PublishedEventsAndClear(t *testing.T) {
	bus := NewRecordingBus(nil)
	ctx := context.Background()
	bus.Publish(ctx, createdEvent("inv-1"))
	bus.Publish(ctx, domain.Used{ID: "inv-1", UsedAt: eventTime})

	published := bus.PublishedEvents()
	require.Len(t, published, 2)
	assert.Equal(t, domain.KindCreated, published[0].Kind())
	assert.Equal(t, domain.KindUsed, published[1].Kind())

	// The returned slice is a copy.
	published[0] = nil
	assert.NotNil(t, bus.PublishedEvents()[0])

	bus.Clear()
	assert.Empty(t, bus.PublishedEvents())
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewRecordingBus(nil)
	var mu sync.Mutex
	count := 0
	bus.Subscribe(domain.KindCreated, func(context.Context, domain.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), createdEvent(fmt.Sprintf("inv-%d", i)))
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, count)
	assert.Len(t, bus.PublishedEvents(), 20)
}

func TestBus_DoesNotRetainEventsByDefault(t *testing.T) {
	bus := NewBus(nil)
	delivered := 0
	bus.Subscribe(domain.KindCreated, func(context.Context, domain.Event) error {
		delivered++
		return nil
	})

	ctx := context.Background()
	for i := range 1000 {
		bus.Publish(ctx, createdEvent(fmt.Sprintf("inv-%d", i)))
	}

	assert.Equal(t, 1000, delivered)
	assert.Empty(t, bus.PublishedEvents())
	assert.Nil(t, bus.published)
}

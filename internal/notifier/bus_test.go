package notifier

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBus_DeliversToMatchingSubscriptions(t *testing.T) {
	bus := NewBus(4, zerolog.Nop())
	defer bus.Close()

	created := bus.Subscribe(EventRecordCreated, 0)
	all := bus.Subscribe(AllEvents, 0)

	bus.Publish(EventRecordCreated, 1)
	bus.Publish(EventStatsUpdate, 2)

	ev := <-created.Events()
	assert.Equal(t, EventRecordCreated, ev.Name)
	assert.Equal(t, 1, ev.Payload)
	assert.Len(t, created.Events(), 0)

	assert.Equal(t, EventRecordCreated, (<-all.Events()).Name)
	assert.Equal(t, EventStatsUpdate, (<-all.Events()).Name)
}

func TestBus_PublishNeverBlocksOnFullBuffer(t *testing.T) {
	bus := NewBus(1, zerolog.Nop())
	defer bus.Close()

	sub := bus.Subscribe(EventRescanProgress, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(EventRescanProgress, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Equal(t, 0, (<-sub.Events()).Payload)
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(1, zerolog.Nop())
	defer bus.Close()

	sub := bus.Subscribe(AllEvents, 0)
	bus.Unsubscribe(sub)
	_, ok := <-sub.Events()
	assert.False(t, ok)

	bus.Publish(EventStatsUpdate, nil)
	bus.Unsubscribe(sub)
}

func TestBus_AttachRunsHandlerAndCloseWaits(t *testing.T) {
	bus := NewBus(8, zerolog.Nop())

	var (
		mu   sync.Mutex
		seen []string
	)
	bus.Attach(AllEvents, func(_ context.Context, ev Event) {
		mu.Lock()
		seen = append(seen, ev.Name)
		mu.Unlock()
	})

	bus.Publish(EventRecordCreated, nil)
	bus.Publish(EventRescanComplete, nil)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 5*time.Millisecond)

	bus.Close()
	bus.Close()
	bus.Publish(EventRecordCreated, nil)

	sub := bus.Subscribe(AllEvents, 0)
	_, ok := <-sub.Events()
	assert.False(t, ok, "subscriptions after Close are already closed")
}

func TestBus_HandlerPanicIsContained(t *testing.T) {
	bus := NewBus(4, zerolog.Nop())
	defer bus.Close()

	var calls atomic.Int32
	bus.Attach(EventStatsUpdate, func(context.Context, Event) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	})

	bus.Publish(EventStatsUpdate, nil)
	bus.Publish(EventStatsUpdate, nil)

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestBus_CloseCancelsHandlerContext(t *testing.T) {
	bus := NewBus(1, zerolog.Nop())

	started := make(chan struct{})
	bus.Attach(EventRescanComplete, func(ctx context.Context, _ Event) {
		close(started)
		<-ctx.Done()
	})
	bus.Publish(EventRescanComplete, nil)
	<-started

	bus.Close()
}

package notifier

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) []byte {
	t.Helper()
	select {
	case msg, ok := <-sub.C:
		require.True(t, ok, "subscription closed unexpectedly")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func requireClosed(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case _, ok := <-sub.C:
		require.False(t, ok, "expected closed channel")
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed")
	}
}

func TestHub_PublishSubscribe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hub := NewHub(4)

	first, err := hub.Subscribe(ctx, "a1")
	require.NoError(t, err)
	second, err := hub.Subscribe(ctx, "a1")
	require.NoError(t, err)
	other, err := hub.Subscribe(ctx, "a2")
	require.NoError(t, err)
	require.Equal(t, 2, hub.Subscribers("a1"))

	require.NoError(t, hub.Publish(ctx, "a1", []byte("one")))
	require.NoError(t, hub.Publish(ctx, "a1", []byte("two")))

	for _, sub := range []*Subscription{first, second} {
		require.Equal(t, "one", string(receive(t, sub)))
		require.Equal(t, "two", string(receive(t, sub)))
	}
	select {
	case msg := <-other.C:
		t.Fatalf("unexpected event on other auction: %s", msg)
	default:
	}

	first.Close()
	first.Close()
	requireClosed(t, first)
	require.Equal(t, 1, hub.Subscribers("a1"))

	// publishing with no watchers left is fine
	second.Close()
	other.Close()
	require.NoError(t, hub.Publish(ctx, "a1", []byte("three")))
	require.Zero(t, hub.Subscribers("a1"))
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hub := NewHub(2)
	slow, err := hub.Subscribe(ctx, "a1")
	require.NoError(t, err)
	defer slow.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, hub.Publish(ctx, "a1", []byte(fmt.Sprintf("%d", i))))
	}

	// only the buffered events survive; publish never blocked
	require.Equal(t, "0", string(receive(t, slow)))
	require.Equal(t, "1", string(receive(t, slow)))
	select {
	case msg := <-slow.C:
		t.Fatalf("expected dropped events, got %s", msg)
	default:
	}
}

func TestHub_ContextCancelUnsubscribes(t *testing.T) {
	t.Parallel()

	hub := NewHub(1)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := hub.Subscribe(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, 1, hub.Subscribers("a1"))

	cancel()
	requireClosed(t, sub)
	require.Zero(t, hub.Subscribers("a1"))
}

func TestHub_ConcurrentPublishAndClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hub := NewHub(8)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub, err := hub.Subscribe(ctx, "a1")
			if err != nil {
				return
			}
			sub.Close()
		}()
		go func(i int) {
			defer wg.Done()
			_ = hub.Publish(ctx, "a1", []byte(fmt.Sprintf("%d", i)))
		}(i)
	}
	wg.Wait()

	require.Zero(t, hub.Subscribers("a1"))
}

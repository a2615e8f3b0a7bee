package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/kadirpekel/worldcore/observability"
)

func collect(t *testing.T, b *Bus, kind EventKind, n int) (<-chan Event, func()) {
	t.Helper()
	out := make(chan Event, n)
	unsub := b.Subscribe(kind, func(ev Event) {
		out <- ev
	})
	return out, unsub
}

func TestPublishSubscribeDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	out, unsub := collect(t, b, KindActivity, 4)
	defer unsub()

	b.Publish(KindActivity, "hello")

	select {
	case ev := <-out:
		if ev.Payload != "hello" {
			t.Fatalf("got %v, want hello", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	count := 0
	unsub := b.Subscribe(KindSystem, func(ev Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	b.Publish(KindSystem, 1)
	time.Sleep(20 * time.Millisecond)
	unsub()
	unsub() // idempotent

	b.Publish(KindSystem, 2)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("expected 1 delivery before unsubscribe, got %d", count)
	}
}

func TestOrderingPerSubscription(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	unsub := b.Subscribe(KindSSE, func(ev Event) {
		mu.Lock()
		order = append(order, ev.Payload.(string))
		if len(order) == 3 {
			close(done)
		}
		mu.Unlock()
	})
	defer unsub()

	b.Publish(KindSSE, "start")
	b.Publish(KindSSE, "chunk")
	b.Publish(KindSSE, "end")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ordered delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"start", "chunk", "end"}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("order[%d] = %q, want %q (full: %v)", i, order[i], w, order)
		}
	}
}

func TestCancelAndCancelled(t *testing.T) {
	b := New()
	defer b.Close()

	if b.Cancelled("chat-1") {
		t.Fatal("expected not cancelled initially")
	}
	b.Cancel("chat-1")
	if !b.Cancelled("chat-1") {
		t.Fatal("expected cancelled after Cancel")
	}
	b.ClearCancelled("chat-1")
	if b.Cancelled("chat-1") {
		t.Fatal("expected cleared")
	}
}

func TestSetMetricsRecordsQueueDepthAndDrops(t *testing.T) {
	b := New()
	defer b.Close()

	m := observability.NewMetrics(&observability.MetricsConfig{Enabled: true})
	b.SetMetrics("world-1", m)

	unsub := b.Subscribe(KindLog, func(Event) {
		time.Sleep(5 * time.Millisecond) // slow subscriber forces an overflow
	})
	defer unsub()

	for i := 0; i < subscriptionBuffer+10; i++ {
		b.Publish(KindLog, i)
	}
	time.Sleep(50 * time.Millisecond)
}

func TestKindIsolation(t *testing.T) {
	b := New()
	defer b.Close()

	sseOut, unsubSSE := collect(t, b, KindSSE, 2)
	defer unsubSSE()
	toolOut, unsubTool := collect(t, b, KindTool, 2)
	defer unsubTool()

	b.Publish(KindSSE, "s")
	b.Publish(KindTool, "t")

	select {
	case ev := <-sseOut:
		if ev.Payload != "s" {
			t.Fatalf("sse subscriber got %v", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out on sse")
	}
	select {
	case ev := <-toolOut:
		if ev.Payload != "t" {
			t.Fatalf("tool subscriber got %v", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out on tool")
	}
}

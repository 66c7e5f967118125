package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestNATSServer starts an embedded NATS server for testing the
// bus's optional fan-out path, the same pattern the teacher used for its
// agent message bus.
func startTestNATSServer(t *testing.T) *server.Server {
	t.Helper()
	opts := &server.Options{Host: "127.0.0.1", Port: -1}
	ns, err := server.NewServer(opts)
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

type recordingSubscriber struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSubscriber) Handle(ctx context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSubscriber) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus()
	sub := &recordingSubscriber{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Subscribe(ctx, sub)

	bus.Publish(Event{Kind: KindOrderPlaced, Severity: SeverityInfo, Symbol: "SOXL", Message: "order placed"})

	require.Eventually(t, func() bool { return sub.count() == 1 }, time.Second, time.Millisecond)
}

func TestBus_PublishStampsTimestamp(t *testing.T) {
	bus := NewBus()
	sub := &recordingSubscriber{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Subscribe(ctx, sub)

	bus.Publish(Event{Kind: KindPositionOpened})

	require.Eventually(t, func() bool { return sub.count() == 1 }, time.Second, time.Millisecond)
	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.False(t, sub.events[0].Timestamp.IsZero())
}

func TestBus_PublishFanoutToMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	sub1 := &recordingSubscriber{}
	sub2 := &recordingSubscriber{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Subscribe(ctx, sub1)
	bus.Subscribe(ctx, sub2)

	bus.Publish(Event{Kind: KindSessionPhaseChanged})

	require.Eventually(t, func() bool { return sub1.count() == 1 && sub2.count() == 1 }, time.Second, time.Millisecond)
}

func TestBus_PublishDropsOnFullQueueRatherThanBlocking(t *testing.T) {
	bus := NewBus()
	sub := &recordingSubscriber{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Subscribe(ctx, sub)

	// Flood well past the per-subscriber queue size; Publish must never
	// block the caller even though the subscriber can't keep up.
	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultQueueSize*4; i++ {
			bus.Publish(Event{Kind: KindScanTickCompleted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked under a full subscriber queue")
	}
}

func TestBus_WithNATSPublishesToSubject(t *testing.T) {
	ns := startTestNATSServer(t)
	conn, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer conn.Close()

	subj := "ees.events.test"
	natsMsgs := make(chan *nats.Msg, 8)
	sub, err := conn.ChanSubscribe(subj, natsMsgs)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	bus := NewBus(WithNATS(conn, subj))
	busSub := &recordingSubscriber{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Subscribe(ctx, busSub)

	bus.Publish(Event{Kind: KindOrderFilled, Symbol: "TQQQ", Message: "filled"})

	select {
	case msg := <-natsMsgs:
		var got Event
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, KindOrderFilled, got.Kind)
		assert.Equal(t, "TQQQ", got.Symbol)
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive event over nats")
	}

	require.Eventually(t, func() bool { return busSub.count() == 1 }, time.Second, time.Millisecond)
}

func TestSubscriberFunc_AdaptsPlainFunction(t *testing.T) {
	var got Event
	var mu sync.Mutex
	fn := SubscriberFunc(func(ctx context.Context, ev Event) {
		mu.Lock()
		defer mu.Unlock()
		got = ev
	})

	fn.Handle(context.Background(), Event{Kind: KindSystemError, Message: "boom"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, KindSystemError, got.Kind)
}

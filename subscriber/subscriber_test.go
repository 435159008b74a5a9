package subscriber

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zeroeq-go/zeroeq/discovery"
	"github.com/zeroeq-go/zeroeq/receiver"
	"github.com/zeroeq-go/zeroeq/transport"
	"github.com/zeroeq-go/zeroeq/uri"
	"github.com/zeroeq-go/zeroeq/wire"
)

// testPub binds a raw broadcast socket for the subscriber tests to
// dial, independent of the publisher package so the two packages'
// tests stay decoupled.
type testPub struct {
	pub  *transport.Pub
	port uint16
}

func newTestPub(t *testing.T) *testPub {
	t.Helper()
	pub := transport.NewPub(context.Background())
	port, err := pub.Bind("tcp://127.0.0.1:0")
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	return &testPub{pub: pub, port: port}
}

func (tp *testPub) close() { tp.pub.Close() }

// publishUntil re-sends event/payload on a short interval, matching
// the slow-joiner pattern any zmq4 PUB/SUB test needs: a SUB dialed
// moments earlier may not have completed its handshake yet.
func (tp *testPub) publishUntil(t *testing.T, stop <-chan struct{}, event wire.EventID, payload []byte) {
	t.Helper()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = tp.pub.Send(wire.Encode(event, payload))
		}
	}
}

func directURI(t *testing.T, port uint16) uri.URI {
	t.Helper()
	u, err := uri.Parse("tcp://127.0.0.1")
	if err != nil {
		t.Fatalf("uri.Parse() error = %v", err)
	}
	return u.WithPort(port)
}

func TestSubscribeDuplicateReturnsFalse(t *testing.T) {
	tp := newTestPub(t)
	defer tp.close()

	s, err := New(WithURI(directURI(t, tp.port)), WithSession("s"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	event := wire.NewEventID(0, 1)
	if !s.Subscribe(event, func(wire.EventID) {}) {
		t.Fatal("first Subscribe() = false, want true")
	}
	if s.Subscribe(event, func(wire.EventID) {}) {
		t.Fatal("duplicate Subscribe() = true, want false")
	}
}

func TestUnsubscribeUnknownReturnsFalse(t *testing.T) {
	tp := newTestPub(t)
	defer tp.close()

	s, err := New(WithURI(directURI(t, tp.port)), WithSession("s"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	if s.Unsubscribe(wire.NewEventID(0, 1)) {
		t.Fatal("Unsubscribe() of an unknown event = true, want false")
	}
}

func TestUnsubscribeThenReSubscribeSucceeds(t *testing.T) {
	tp := newTestPub(t)
	defer tp.close()

	s, err := New(WithURI(directURI(t, tp.port)), WithSession("s"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	event := wire.NewEventID(0, 1)
	s.Subscribe(event, func(wire.EventID) {})
	if !s.Unsubscribe(event) {
		t.Fatal("Unsubscribe() = false, want true")
	}
	if !s.Subscribe(event, func(wire.EventID) {}) {
		t.Fatal("re-Subscribe() after Unsubscribe = false, want true")
	}
}

func TestSharedGroupDrivesDirectSubscriber(t *testing.T) {
	tp := newTestPub(t)
	defer tp.close()

	group := receiver.NewGroup()
	s, err := New(WithURI(directURI(t, tp.port)), WithSession("s"), WithGroup(group))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	event := wire.NewEventID(1, 2)
	payload := []byte("payload")

	got := make(chan []byte, 1)
	if !s.SubscribePayload(event, func(_ wire.EventID, p []byte) { got <- p }) {
		t.Fatal("SubscribePayload() = false")
	}

	stop := make(chan struct{})
	defer close(stop)
	go tp.publishUntil(t, stop, event, payload)

	done := make(chan bool, 1)
	go func() { done <- group.Receive(5 * time.Second) }()

	select {
	case p := <-got:
		if string(p) != "payload" {
			t.Fatalf("payload = %q, want %q", p, "payload")
		}
	case <-time.After(6 * time.Second):
		t.Fatal("timed out waiting for the subscriber to dispatch the payload")
	}
	<-done
}

type fakeSerializable struct {
	id       wire.EventID
	data     []byte
	updated  int
	unmarshalErr error
}

func (f *fakeSerializable) TypeID() wire.EventID { return f.id }
func (f *fakeSerializable) Marshal() ([]byte, error) { return f.data, nil }
func (f *fakeSerializable) Unmarshal(data []byte) error {
	if f.unmarshalErr != nil {
		return f.unmarshalErr
	}
	f.data = data
	return nil
}
func (f *fakeSerializable) Updated() { f.updated++ }

func TestSubscribeSerializableAppliesAndNotifies(t *testing.T) {
	tp := newTestPub(t)
	defer tp.close()

	group := receiver.NewGroup()
	s, err := New(WithURI(directURI(t, tp.port)), WithSession("s"), WithGroup(group))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	sink := &fakeSerializable{id: wire.NewEventID(9, 9)}
	if !s.SubscribeSerializable(sink) {
		t.Fatal("SubscribeSerializable() = false")
	}

	stop := make(chan struct{})
	defer close(stop)
	go tp.publishUntil(t, stop, sink.id, []byte("state"))

	deadline := time.Now().Add(5 * time.Second)
	for sink.updated == 0 && time.Now().Before(deadline) {
		group.Receive(200 * time.Millisecond)
	}
	if sink.updated == 0 {
		t.Fatal("Updated() was never called")
	}
	if string(sink.data) != "state" {
		t.Fatalf("sink.data = %q, want %q", sink.data, "state")
	}
}

func TestSubscribeAllCatchesUnregisteredEvents(t *testing.T) {
	tp := newTestPub(t)
	defer tp.close()

	group := receiver.NewGroup()
	s, err := New(WithURI(directURI(t, tp.port)), WithSession("s"), WithGroup(group))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	event := wire.NewEventID(3, 4)
	got := make(chan wire.EventID, 1)
	s.SubscribeAll(func(id wire.EventID, _ []byte) { got <- id })

	stop := make(chan struct{})
	defer close(stop)
	go tp.publishUntil(t, stop, event, nil)

	done := make(chan bool, 1)
	go func() { done <- group.Receive(5 * time.Second) }()

	select {
	case id := <-got:
		if id != event {
			t.Fatalf("SubscribeAll() saw %v, want %v", id, event)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("timed out waiting for the catch-all handler")
	}
	<-done
}

func TestDiscoverySelfConnectionSuppressed(t *testing.T) {
	fake := discovery.NewFake()
	s, err := New(WithSession("s"), WithDiscovery(fake))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	fake.Inject(discovery.Event{
		Kind: discovery.Added,
		Instance: discovery.Instance{
			UUID:    s.ID(),
			Session: "s",
			Host:    "127.0.0.1",
			Port:    9,
		},
	})
	s.Update()

	if s.ConnectionCount() != 0 {
		t.Fatalf("ConnectionCount() = %d after a self-announcement, want 0", s.ConnectionCount())
	}
}

func TestDiscoverySessionMismatchSuppressed(t *testing.T) {
	fake := discovery.NewFake()
	s, err := New(WithSession("s"), WithDiscovery(fake))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	fake.Inject(discovery.Event{
		Kind: discovery.Added,
		Instance: discovery.Instance{
			UUID:    uuid.New(),
			Session: "other",
			Host:    "127.0.0.1",
			Port:    9,
		},
	})
	s.Update()

	if s.ConnectionCount() != 0 {
		t.Fatalf("ConnectionCount() = %d after a session mismatch, want 0", s.ConnectionCount())
	}
}

func TestDiscoveryAddThenRemoveConnectsAndDisconnects(t *testing.T) {
	tp := newTestPub(t)
	defer tp.close()

	fake := discovery.NewFake()
	s, err := New(WithSession("s"), WithDiscovery(fake))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	inst := discovery.Instance{
		UUID:    uuid.New(),
		Session: "s",
		Host:    "127.0.0.1",
		Port:    tp.port,
	}

	fake.Inject(discovery.Event{Kind: discovery.Added, Instance: inst})
	s.Update()
	if s.ConnectionCount() != 1 {
		t.Fatalf("ConnectionCount() = %d after Added, want 1", s.ConnectionCount())
	}

	fake.Inject(discovery.Event{Kind: discovery.Removed, Instance: inst})
	s.Update()
	if s.ConnectionCount() != 0 {
		t.Fatalf("ConnectionCount() = %d after Removed, want 0", s.ConnectionCount())
	}
}

func TestDuplicateAddIsIgnored(t *testing.T) {
	tp := newTestPub(t)
	defer tp.close()

	fake := discovery.NewFake()
	s, err := New(WithSession("s"), WithDiscovery(fake))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	inst := discovery.Instance{
		UUID:    uuid.New(),
		Session: "s",
		Host:    "127.0.0.1",
		Port:    tp.port,
	}

	fake.Inject(discovery.Event{Kind: discovery.Added, Instance: inst})
	fake.Inject(discovery.Event{Kind: discovery.Added, Instance: inst})
	s.Update()

	if s.ConnectionCount() != 1 {
		t.Fatalf("ConnectionCount() = %d after a duplicate Added, want 1", s.ConnectionCount())
	}
}

package subscriber

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/zeroeq-go/zeroeq/discovery"
	"github.com/zeroeq-go/zeroeq/instanceid"
	"github.com/zeroeq-go/zeroeq/receiver"
	"github.com/zeroeq-go/zeroeq/session"
	"github.com/zeroeq-go/zeroeq/transport"
	"github.com/zeroeq-go/zeroeq/uri"
	"github.com/zeroeq-go/zeroeq/wire"
)

// ErrConnectFailed wraps a failure to dial a fully qualified URI at
// construction time.
var ErrConnectFailed = errors.New("subscriber: connect failed")

// ErrDiscoveryUnavailable wraps a failure to start a discovery browse.
var ErrDiscoveryUnavailable = errors.New("subscriber: discovery unavailable")

// EventFunc is a header-only subscription callback.
type EventFunc func(event wire.EventID)

// EventPayloadFunc is a payload subscription callback.
type EventPayloadFunc func(event wire.EventID, payload []byte)

type connection struct {
	sock *transport.Sub
}

// Subscriber tracks connected publishers and dispatches received
// events to registered callbacks. It implements receiver.Receiver, so
// a caller must drive it via a receiver.Group's Receive.
type Subscriber struct {
	id      uuid.UUID
	session string
	hintURI uri.URI

	ctx       context.Context
	group     *receiver.Group
	ownsGroup bool
	discovery discovery.Adapter

	mu          sync.Mutex
	connections map[string]*connection
	dispatch    map[wire.EventID]EventPayloadFunc
	fallback    EventPayloadFunc
}

// Option configures a Subscriber at construction time.
type Option func(*config)

type config struct {
	ctx       context.Context
	uri       uri.URI
	session   string
	group     *receiver.Group
	discovery discovery.Adapter
}

// WithURI sets the subscribe target. A fully qualified URI (host and
// non-zero port) direct-connects and skips discovery entirely. A
// partial or absent URI is recorded but not applied: discovery-driven
// connections dial each instance's advertised host and port, and
// discovery still filters by session (spec.md §4.3's construction
// table).
func WithURI(u uri.URI) Option {
	return func(c *config) { c.uri = u }
}

// WithSession sets the session filter applied to discovered
// instances. The default is session.Default.
func WithSession(s string) Option {
	return func(c *config) { c.session = s }
}

// WithGroup attaches this subscriber to an existing receiver.Group
// instead of the private one created by default, so several
// subscribers (and publishers' peers) can share one poll loop.
func WithGroup(g *receiver.Group) Option {
	return func(c *config) { c.group = g }
}

// WithDiscovery overrides the discovery adapter used to browse for
// peers. Ignored when the URI is fully qualified. The default is a
// zeroconf-backed adapter.
func WithDiscovery(a discovery.Adapter) Option {
	return func(c *config) { c.discovery = a }
}

// WithContext sets the zmq4 context sockets are created on. The
// default is context.Background().
func WithContext(ctx context.Context) Option {
	return func(c *config) { c.ctx = ctx }
}

// New constructs a Subscriber per the construction table in spec.md
// §4.3 and registers it with its receiver.Group.
func New(opts ...Option) (*Subscriber, error) {
	c := &config{
		ctx:     context.Background(),
		session: session.Default,
	}
	for _, opt := range opts {
		opt(c)
	}

	resolved, err := session.Resolve(c.session)
	if err != nil {
		return nil, fmt.Errorf("subscriber: %w", err)
	}

	group := c.group
	ownsGroup := group == nil
	if ownsGroup {
		group = receiver.NewGroup()
	}

	s := &Subscriber{
		id:          instanceid.New(),
		session:     resolved,
		hintURI:     c.uri,
		ctx:         c.ctx,
		group:       group,
		ownsGroup:   ownsGroup,
		connections: make(map[string]*connection),
		dispatch:    make(map[wire.EventID]EventPayloadFunc),
	}

	if c.uri.FullyQualified() {
		if err := s.connectDirect(c.uri); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
		}
	} else {
		disc := c.discovery
		if disc == nil {
			disc = discovery.NewZeroconfAdapter()
		}
		s.discovery = disc
		if err := disc.Browse(discovery.ServiceName); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDiscoveryUnavailable, err)
		}
	}

	group.Register(s)
	return s, nil
}

// ID returns this subscriber's instance identifier, compared against
// a discovered instance's UUID to suppress self-connections.
func (s *Subscriber) ID() uuid.UUID { return s.id }

// Session returns the resolved session label this subscriber filters
// discovered instances by.
func (s *Subscriber) Session() string { return s.session }

// Subscribe registers a header-only callback for event. Returns false
// if event already has a registration.
func (s *Subscriber) Subscribe(event wire.EventID, fn EventFunc) bool {
	return s.SubscribePayload(event, func(id wire.EventID, _ []byte) { fn(id) })
}

// SubscribePayload registers a payload callback for event. Returns
// false if event already has a registration.
func (s *Subscriber) SubscribePayload(event wire.EventID, fn EventPayloadFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.dispatch[event]; exists {
		return false
	}
	s.dispatch[event] = fn
	return true
}

// SubscribeSerializable registers a payload handler under sink's own
// type identifier that unmarshals into sink and calls sink.Updated.
// Returns false if sink's type identifier already has a registration.
func (s *Subscriber) SubscribeSerializable(sink wire.Serializable) bool {
	return s.SubscribePayload(sink.TypeID(), func(_ wire.EventID, payload []byte) {
		if err := sink.Unmarshal(payload); err != nil {
			log.Printf("zeroeq: subscriber: unmarshal %s: %v", sink.TypeID(), err)
			return
		}
		sink.Updated()
	})
}

// SubscribeAll registers a catch-all handler invoked for any event
// that has no specific dispatch entry, instead of the silent drop
// spec.md §4.3 otherwise specifies. It exists for introspection tools
// like cmd/zeroeq-ctl that need to observe arbitrary traffic; ordinary
// subscribers should not need it.
func (s *Subscriber) SubscribeAll(fn EventPayloadFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = fn
}

// Unsubscribe removes event's registration. Returns false if none
// existed.
func (s *Subscriber) Unsubscribe(event wire.EventID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.dispatch[event]; !exists {
		return false
	}
	delete(s.dispatch, event)
	return true
}

// UnsubscribeSerializable removes sink's type identifier registration.
func (s *Subscriber) UnsubscribeSerializable(sink wire.Serializable) bool {
	return s.Unsubscribe(sink.TypeID())
}

// ConnectionCount returns the number of currently connected peers,
// including any direct (non-discovery) connection.
func (s *Subscriber) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

// AddSockets implements receiver.Receiver.
func (s *Subscriber) AddSockets(out []*transport.Socket) []*transport.Socket {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.connections {
		out = append(out, c.sock.Socket)
	}
	return out
}

// Process implements receiver.Receiver: decode the ready socket's
// message and invoke the matching dispatch entry, silently dropping
// unknown event identifiers per spec.md §4.3.
func (s *Subscriber) Process(sock *transport.Socket) error {
	msg, err := sock.Take()
	if err != nil {
		return err
	}
	event, payload, err := wire.Decode(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	fn := s.dispatch[event]
	if fn == nil {
		fn = s.fallback
	}
	s.mu.Unlock()
	if fn != nil {
		fn(event, payload)
	}
	return nil
}

// Update implements receiver.Receiver: drains discovery events and
// applies connect/disconnect lifecycle transitions.
func (s *Subscriber) Update() {
	if s.discovery == nil {
		return
	}
	for _, ev := range s.discovery.Poll() {
		switch ev.Kind {
		case discovery.Added:
			s.handleAdded(ev.Instance)
		case discovery.Removed:
			s.handleRemoved(ev.Instance)
		}
	}
}

func (s *Subscriber) handleAdded(inst discovery.Instance) {
	if inst.UUID == s.id {
		return
	}
	if inst.Session != s.session {
		return
	}
	key := inst.UUID.String()

	s.mu.Lock()
	if _, exists := s.connections[key]; exists {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	endpoint := fmt.Sprintf("tcp://%s:%d", inst.Host, inst.Port)
	sub, err := transport.NewSub(s.ctx, endpoint)
	if err != nil {
		log.Printf("zeroeq: subscriber: connect %s: %v", endpoint, err)
		return
	}

	s.mu.Lock()
	s.connections[key] = &connection{sock: sub}
	s.mu.Unlock()
}

func (s *Subscriber) handleRemoved(inst discovery.Instance) {
	key := inst.UUID.String()

	s.mu.Lock()
	c, ok := s.connections[key]
	if ok {
		delete(s.connections, key)
	}
	s.mu.Unlock()

	if ok {
		_ = c.sock.Close()
	}
}

func (s *Subscriber) connectDirect(u uri.URI) error {
	sub, err := transport.NewSub(s.ctx, u.ZMQEndpoint())
	if err != nil {
		return err
	}
	key := "explicit:" + u.String()
	s.mu.Lock()
	s.connections[key] = &connection{sock: sub}
	s.mu.Unlock()
	return nil
}

// Close deregisters from the receiver group, closes every connected
// socket, and shuts down any discovery browse this subscriber started.
func (s *Subscriber) Close() error {
	s.group.Deregister(s)

	s.mu.Lock()
	conns := s.connections
	s.connections = make(map[string]*connection)
	s.mu.Unlock()

	var err error
	for _, c := range conns {
		if cerr := c.sock.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if s.discovery != nil {
		if derr := s.discovery.Close(); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

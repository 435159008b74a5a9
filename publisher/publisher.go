// Package publisher implements the broadcast side of the fabric:
// spec.md §4.2. A Publisher binds one socket, optionally announces
// itself via discovery, and sends header/payload frames on demand.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/zeroeq-go/zeroeq/discovery"
	"github.com/zeroeq-go/zeroeq/instanceid"
	"github.com/zeroeq-go/zeroeq/session"
	"github.com/zeroeq-go/zeroeq/transport"
	"github.com/zeroeq-go/zeroeq/uri"
	"github.com/zeroeq-go/zeroeq/wire"

	"github.com/google/uuid"
)

// ErrBindFailed wraps a failure to bind the broadcast socket.
var ErrBindFailed = errors.New("publisher: bind failed")

// ErrAnnounceFailed wraps a failure to announce via discovery.
var ErrAnnounceFailed = errors.New("publisher: announce failed")

// Publisher is a bound broadcast endpoint. The zero value is not
// usable; construct with New.
type Publisher struct {
	mu sync.Mutex

	id      uuid.UUID
	uri     uri.URI
	session string

	sock      *transport.Pub
	discovery discovery.Adapter
	announced bool
}

// Option configures a Publisher at construction time.
type Option func(*config)

type config struct {
	ctx       context.Context
	uri       uri.URI
	session   string
	discovery discovery.Adapter
}

// WithURI sets the (possibly partial) bind URI. The default is the
// zero URI, which binds to the wildcard interface on an OS-assigned
// port.
func WithURI(u uri.URI) Option {
	return func(c *config) { c.uri = u }
}

// WithSession sets the session label announced alongside this
// publisher. The default is session.Default.
func WithSession(s string) Option {
	return func(c *config) { c.session = s }
}

// WithDiscovery overrides the discovery adapter used to announce this
// publisher. The default is a zeroconf-backed adapter.
func WithDiscovery(a discovery.Adapter) Option {
	return func(c *config) { c.discovery = a }
}

// WithContext sets the zmq4 context the broadcast socket is created
// on. The default is context.Background().
func WithContext(ctx context.Context) Option {
	return func(c *config) { c.ctx = ctx }
}

// New binds a broadcast socket and, unless the resolved session is
// session.Null, announces it via discovery. Per spec.md §4.2 steps
// 1-5: open the socket, build the transport URI, bind, re-read the
// bound port, then announce.
func New(opts ...Option) (*Publisher, error) {
	c := &config{
		ctx:     context.Background(),
		session: session.Default,
	}
	for _, opt := range opts {
		opt(c)
	}

	resolved, err := session.Resolve(c.session)
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}

	sock := transport.NewPub(c.ctx)
	port, err := sock.Bind(c.uri.ZMQEndpoint())
	if err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("%w: %v", ErrBindFailed, err)
	}

	p := &Publisher{
		id:      instanceid.New(),
		uri:     c.uri.WithPort(port),
		session: resolved,
		sock:    sock,
	}

	if resolved == session.Null {
		return p, nil
	}

	p.discovery = c.discovery
	if p.discovery == nil {
		p.discovery = discovery.NewZeroconfAdapter()
	}

	metadata := map[string]string{
		discovery.KeyInstance:    p.id.String(),
		discovery.KeyUser:        instanceid.CurrentUser(),
		discovery.KeyApplication: instanceid.ExecutableName(),
		discovery.KeySession:     resolved,
	}
	iface := ""
	if p.uri.HasHost() {
		iface = p.uri.Host
	}
	if err := p.discovery.Announce(port, iface, metadata); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("%w: %v", ErrAnnounceFailed, err)
	}
	p.announced = true

	return p, nil
}

// ID returns this publisher's instance identifier, used by
// subscribers for self-connection suppression.
func (p *Publisher) ID() uuid.UUID { return p.id }

// Session returns the resolved session label this publisher
// announced under (or would have, had it not used session.Null).
func (p *Publisher) Session() string { return p.session }

// URI returns the bound endpoint, with its port updated to the
// OS-assigned value if the caller left it unspecified.
func (p *Publisher) URI() uri.URI {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uri
}

// Publish sends a header-only message: spec.md §4.2's publish(event).
func (p *Publisher) Publish(event wire.EventID) bool {
	return p.publish(event, nil)
}

// PublishPayload sends a header frame followed by payload, skipping
// the payload frame entirely when payload is empty per spec.md §4.1.
func (p *Publisher) PublishPayload(event wire.EventID, payload []byte) bool {
	return p.publish(event, payload)
}

// PublishSerializable marshals s and publishes the result under its
// own type identifier, per spec.md §4.2's publish(serializable).
func (p *Publisher) PublishSerializable(s wire.Serializable) bool {
	data, err := s.Marshal()
	if err != nil {
		return false
	}
	return p.publish(s.TypeID(), data)
}

func (p *Publisher) publish(event wire.EventID, payload []byte) bool {
	p.mu.Lock()
	sock := p.sock
	p.mu.Unlock()
	if sock == nil {
		return false
	}
	msg := wire.Encode(event, payload)
	// A send failure is a non-fatal "publish failed" indicator per
	// spec.md §4.1: it is logged and reported as false, but it never
	// tears down the publisher.
	if err := sock.Send(msg); err != nil {
		log.Printf("zeroeq: publish %s failed: %v", event, err)
		return false
	}
	return true
}

// Close retracts any discovery announcement and closes the socket.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.announced && p.discovery != nil {
		if rerr := p.discovery.Retract(); rerr != nil {
			err = rerr
		}
		p.announced = false
	}
	if p.sock != nil {
		if cerr := p.sock.Close(); cerr != nil && err == nil {
			err = cerr
		}
		p.sock = nil
	}
	return err
}

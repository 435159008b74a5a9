// Package transport wraps the zmq4 PUB/SUB sockets used as the
// one-to-many broadcast medium (spec.md §2's "transport abstraction").
//
// go-zeromq/zmq4 is a pure-Go reimplementation whose Socket.Recv()
// blocks on an internal channel rather than exposing a poll()-able file
// descriptor set the way libzmq does. Socket here gives the receiver
// package (the shared multiplexer) a non-blocking Poll/Take pair
// instead, backed by a single reader goroutine per socket — the same
// pattern the teacher's ZmqNode.receiverLoop uses for its ROUTER
// socket, generalized to every connected SUB socket. See SPEC_FULL.md's
// "IMPLEMENTATION NOTE" for the full rationale.
package transport

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	"github.com/go-zeromq/zmq4"
)

// ErrNoData is returned by Take when no message is buffered.
var ErrNoData = errors.New("transport: no data pending")

type recvResult struct {
	msg zmq4.Msg
	err error
}

// Socket is a single zmq4 socket with a background reader goroutine
// that buffers received messages so callers can check readiness
// without blocking.
type Socket struct {
	zsock   zmq4.Socket
	recvCh  chan recvResult
	closeCh chan struct{}
	closeOnce sync.Once

	peek    *recvResult
}

func newSocket(zsock zmq4.Socket) *Socket {
	return &Socket{
		zsock:   zsock,
		recvCh:  make(chan recvResult, 256),
		closeCh: make(chan struct{}),
	}
}

// Wrap adapts an arbitrary zmq4.Socket into a Socket with a running
// reader goroutine, exported so callers (and tests, including in other
// packages) can drive the receiver core's poll loop over a fake
// zmq4.Socket without a real network connection.
func Wrap(zsock zmq4.Socket) *Socket {
	s := newSocket(zsock)
	s.startReading()
	return s
}

func (s *Socket) startReading() {
	go s.readLoop()
}

func (s *Socket) readLoop() {
	for {
		msg, err := s.zsock.Recv()
		select {
		case s.recvCh <- recvResult{msg: msg, err: err}:
		case <-s.closeCh:
			return
		}
		if err != nil {
			return
		}
	}
}

// Poll reports whether a message is ready to be consumed by Take
// without blocking. It is the non-blocking "is POLLIN set" check the
// receiver core's poll loop uses in place of zmq_poll.
func (s *Socket) Poll() bool {
	if s.peek != nil {
		return true
	}
	select {
	case r := <-s.recvCh:
		s.peek = &r
		return true
	default:
		return false
	}
}

// Take consumes the message made ready by the most recent successful
// Poll. It returns ErrNoData if nothing is buffered.
func (s *Socket) Take() (zmq4.Msg, error) {
	if s.peek == nil && !s.Poll() {
		return zmq4.Msg{}, ErrNoData
	}
	r := *s.peek
	s.peek = nil
	return r.msg, r.err
}

// Send writes a message to the socket.
func (s *Socket) Send(msg zmq4.Msg) error {
	return s.zsock.Send(msg)
}

// Close shuts down the reader goroutine (if any) and the underlying
// zmq4 socket. Safe to call more than once.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		err = s.zsock.Close()
	})
	return err
}

// Pub is a bound broadcast (PUB) socket.
type Pub struct {
	*Socket
}

// NewPub creates an unbound PUB socket on ctx.
func NewPub(ctx context.Context) *Pub {
	return &Pub{Socket: newSocket(zmq4.NewPub(ctx))}
}

// Bind listens on endpoint and returns the bound port, re-read from
// the socket so callers can observe an OS-assigned port (endpoint port
// 0) after binding, per spec.md §3's invariant that a publisher's
// bound URI has a non-zero port after binding.
func (p *Pub) Bind(endpoint string) (uint16, error) {
	if err := p.zsock.Listen(endpoint); err != nil {
		return 0, err
	}
	return boundPort(p.zsock), nil
}

// Sub is a connected subscription (SUB) socket, subscribed to every
// event identifier: the transport-level topic filter is the empty
// string, matching spec.md §4.3's "any event-id prefix matches".
type Sub struct {
	*Socket
}

// NewSub dials endpoint and subscribes to all messages.
func NewSub(ctx context.Context, endpoint string) (*Sub, error) {
	zsock := zmq4.NewSub(ctx)
	if err := zsock.Dial(endpoint); err != nil {
		_ = zsock.Close()
		return nil, err
	}
	if err := zsock.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		_ = zsock.Close()
		return nil, err
	}
	s := &Sub{Socket: newSocket(zsock)}
	s.startReading()
	return s, nil
}

type addrer interface {
	Addr() net.Addr
}

func boundPort(zsock zmq4.Socket) uint16 {
	a, ok := zsock.(addrer)
	if !ok {
		return 0
	}
	addr := a.Addr()
	if addr == nil {
		return 0
	}
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return 0
	}
	return uint16(port)
}

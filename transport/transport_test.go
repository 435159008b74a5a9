package transport

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
)

// fakeZMQSocket is a minimal in-memory zmq4.Socket stand-in used to
// exercise Socket's Poll/Take draining without a real network socket.
type fakeZMQSocket struct {
	mu     sync.Mutex
	queue  []zmq4.Msg
	cond   *sync.Cond
	closed bool
}

func newFakeZMQSocket() *fakeZMQSocket {
	f := &fakeZMQSocket{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *fakeZMQSocket) push(msg zmq4.Msg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, msg)
	f.cond.Signal()
}

func (f *fakeZMQSocket) Recv() (zmq4.Msg, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.queue) == 0 && !f.closed {
		f.cond.Wait()
	}
	if f.closed && len(f.queue) == 0 {
		return zmq4.Msg{}, errors.New("fake socket closed")
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, nil
}

func (f *fakeZMQSocket) Send(zmq4.Msg) error      { return nil }
func (f *fakeZMQSocket) SendMulti(zmq4.Msg) error { return nil }
func (f *fakeZMQSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
	return nil
}
func (f *fakeZMQSocket) Listen(string) error { return nil }
func (f *fakeZMQSocket) Dial(string) error   { return nil }
func (f *fakeZMQSocket) Type() zmq4.SocketType { return zmq4.SocketType("FAKE") }
func (f *fakeZMQSocket) GetOption(string) (interface{}, error) { return nil, nil }
func (f *fakeZMQSocket) SetOption(string, interface{}) error   { return nil }
func (f *fakeZMQSocket) Addr() net.Addr { return nil }

func TestSocketPollTakeDrainsBurst(t *testing.T) {
	fake := newFakeZMQSocket()
	s := newSocket(fake)
	s.startReading()
	defer s.Close()

	const n = 100
	for i := 0; i < n; i++ {
		fake.push(zmq4.NewMsg([]byte{byte(i)}))
	}

	deadline := time.Now().Add(2 * time.Second)
	got := 0
	for got < n && time.Now().Before(deadline) {
		if s.Poll() {
			if _, err := s.Take(); err != nil {
				t.Fatalf("Take() error = %v", err)
			}
			got++
		} else {
			time.Sleep(time.Millisecond)
		}
	}
	if got != n {
		t.Fatalf("drained %d of %d messages", got, n)
	}
}

func TestSocketTakeWithoutPollReturnsErrNoData(t *testing.T) {
	fake := newFakeZMQSocket()
	s := newSocket(fake)
	s.startReading()
	defer s.Close()

	if _, err := s.Take(); err != ErrNoData {
		t.Fatalf("Take() error = %v, want ErrNoData", err)
	}
}

func TestSocketCloseIsIdempotent(t *testing.T) {
	fake := newFakeZMQSocket()
	s := newSocket(fake)
	s.startReading()

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

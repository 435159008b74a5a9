package receiver

import (
	"errors"

	"github.com/zeroeq-go/zeroeq/transport"
)

// ErrPollFailed corresponds to spec.md §7's poll-failed error kind: a
// fatal failure of the multiplex step itself, distinct from a single
// socket's receive failing (which is logged and the socket is simply
// re-polled). Kept for interface fidelity with the original design;
// this implementation's poll step inspects Go channels rather than an
// OS-level descriptor set, so it cannot itself fail this way.
var ErrPollFailed = errors.New("receiver: poll failed")

// Receiver is the three-operation capability interface described in
// spec.md's Design Note 9: contribute sockets, process a ready socket,
// and run a periodic update. Subscriber is the primary implementor;
// other receiver kinds (e.g. a future request/reply endpoint) can plug
// into the same Group without the Group knowing their concrete type.
type Receiver interface {
	// AddSockets appends this receiver's currently connected sockets
	// to out and returns the extended slice, in arbitrary but stable
	// order for the current poll cycle.
	AddSockets(out []*transport.Socket) []*transport.Socket

	// Process is called when sock (one of this receiver's own
	// sockets, as returned by a prior AddSockets) has data ready. A
	// returned error is logged by the Group and does not abort the
	// receive() call in progress, matching spec.md §4.1's "a receive
	// failure is logged and the socket is re-polled".
	Process(sock *transport.Socket) error

	// Update is called once per outer poll iteration, before sockets
	// are gathered, so a receiver can refresh its own state (e.g. a
	// Subscriber applying pending discovery events) even if none of
	// its sockets are currently readable.
	Update()
}

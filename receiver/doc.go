// Package receiver implements the shared multiplexer described in
// spec.md §4.4: a cooperative poll loop that fans a single bounded-time
// receive call across an arbitrary set of receiver objects, each
// contributing zero or more sockets.
//
// A Group is not safe for concurrent use (spec.md §5): all calls on a
// Group and the Receivers registered with it must be serialized by the
// caller. Independent Groups may run concurrently.
package receiver

// Package zeroeq is a lightweight event distribution fabric for local
// networks: processes announce themselves via zero-configuration
// discovery, find peers in their session, and exchange typed events
// with optional binary payloads over a one-to-many broadcast socket.
//
// A Publisher (see the publisher package) owns a bound broadcast socket
// and announces itself; a Subscriber (see the subscriber package) owns
// one connected socket per discovered peer and dispatches received
// events to registered callbacks. Any number of Subscribers can share a
// single receiver Group so one blocking receive call serves them all.
//
// There is no reliable delivery, ordering across publishers, replay, or
// authentication: a slow or late subscriber simply misses events
// published before it connects.
package zeroeq

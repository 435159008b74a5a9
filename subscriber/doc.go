// Package subscriber implements the receiving side of the fabric:
// spec.md §4.3. A Subscriber tracks a dispatch table of event
// callbacks and a set of connected sockets driven by discovery
// add/remove notifications, and plugs into a receiver.Group as a
// receiver.Receiver.
package subscriber

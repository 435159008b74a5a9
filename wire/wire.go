// Package wire implements the framing in spec.md §4.1: a published
// message is a 16-byte little-endian event identifier header frame
// plus an optional raw payload frame.
package wire

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-zeromq/zmq4"
)

// EventID is the 128-bit opaque value naming an event type. Its byte
// layout (EventID[0] is the least significant byte of the number) is
// already the wire's little-endian layout by construction: unlike the
// C original, which byte-swaps a host-native uint128_t before sending
// on big-endian machines, a Go byte array has no host-dependent memory
// layout, so there is nothing to swap — EventID always carries exactly
// the bytes that go on the wire.
type EventID [16]byte

// NewEventID builds an EventID from its low and high 64-bit halves,
// packed little-endian (low half occupies bytes 0-7).
func NewEventID(high, low uint64) EventID {
	var id EventID
	binary.LittleEndian.PutUint64(id[0:8], low)
	binary.LittleEndian.PutUint64(id[8:16], high)
	return id
}

// Low returns the least-significant 64 bits of the identifier.
func (id EventID) Low() uint64 { return binary.LittleEndian.Uint64(id[0:8]) }

// High returns the most-significant 64 bits of the identifier.
func (id EventID) High() uint64 { return binary.LittleEndian.Uint64(id[8:16]) }

// ParseEventID parses a 32 hex-character string, written most
// significant byte first as in "0x0123456789ABCDEF0123456789ABCDEF",
// matching the human-readable notation used in spec.md §8's examples.
func ParseEventID(s string) (EventID, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 32 {
		return EventID{}, fmt.Errorf("wire: event id must be 32 hex characters, got %d", len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return EventID{}, fmt.Errorf("wire: invalid event id: %w", err)
	}
	var id EventID
	for i := 0; i < 16; i++ {
		id[i] = raw[15-i]
	}
	return id, nil
}

// String formats the identifier the same way ParseEventID reads it:
// most significant byte first, in uppercase hex.
func (id EventID) String() string {
	var raw [16]byte
	for i := 0; i < 16; i++ {
		raw[i] = id[15-i]
	}
	return "0x" + strings.ToUpper(hex.EncodeToString(raw[:]))
}

// Serializable is the payload collaborator described in spec.md §1:
// something that can be asked for a type identifier and a binary blob
// to publish, and that can apply a received blob to itself.
type Serializable interface {
	// TypeID returns the event identifier this object publishes and
	// subscribes under.
	TypeID() EventID

	// Marshal returns the binary payload to publish.
	Marshal() ([]byte, error)

	// Unmarshal applies a received payload to this object.
	Unmarshal(data []byte) error

	// Updated is called after Unmarshal succeeds during receive(), so
	// the object can notify its own observers.
	Updated()
}

// Encode builds the one- or two-frame wire message for event with an
// optional payload, per spec.md §4.1: the payload frame is omitted
// when payload is empty.
func Encode(event EventID, payload []byte) zmq4.Msg {
	header := make([]byte, 16)
	copy(header, event[:])
	if len(payload) == 0 {
		return zmq4.NewMsg(header)
	}
	return zmq4.NewMsgFrom(header, payload)
}

// Decode parses a received multipart message back into an event
// identifier and its (possibly nil) payload.
func Decode(msg zmq4.Msg) (EventID, []byte, error) {
	if len(msg.Frames) == 0 {
		return EventID{}, nil, fmt.Errorf("wire: empty message")
	}
	header := msg.Frames[0]
	if len(header) != 16 {
		return EventID{}, nil, fmt.Errorf("wire: header frame is %d bytes, want 16", len(header))
	}
	var id EventID
	copy(id[:], header)

	if len(msg.Frames) == 1 {
		return id, nil, nil
	}
	return id, msg.Frames[1], nil
}

package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEventIDRoundTrip(t *testing.T) {
	const s = "0123456789ABCDEF0123456789ABCDEF"
	id, err := ParseEventID(s)
	if err != nil {
		t.Fatalf("ParseEventID() error = %v", err)
	}
	if got := id.String(); got != "0x"+s {
		t.Fatalf("String() = %q, want %q", got, "0x"+s)
	}
}

func TestNewEventIDHighLow(t *testing.T) {
	id := NewEventID(0xAABBCCDDEEFF0011, 0x1122334455667788)
	if id.High() != 0xAABBCCDDEEFF0011 {
		t.Fatalf("High() = %x", id.High())
	}
	if id.Low() != 0x1122334455667788 {
		t.Fatalf("Low() = %x", id.Low())
	}
}

func TestParseEventIDInvalidLength(t *testing.T) {
	if _, err := ParseEventID("abcd"); err == nil {
		t.Fatal("expected error for short event id")
	}
}

func TestEncodeDecodeHeaderOnly(t *testing.T) {
	id := NewEventID(1, 2)
	msg := Encode(id, nil)
	if len(msg.Frames) != 1 {
		t.Fatalf("Encode() produced %d frames, want 1", len(msg.Frames))
	}

	gotID, payload, err := Decode(msg)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if gotID != id {
		t.Fatalf("Decode() id = %v, want %v", gotID, id)
	}
	if payload != nil {
		t.Fatalf("Decode() payload = %v, want nil", payload)
	}
}

func TestEncodeDecodeWithPayload(t *testing.T) {
	id := NewEventID(3, 4)
	want := []byte("hello")
	msg := Encode(id, want)
	if len(msg.Frames) != 2 {
		t.Fatalf("Encode() produced %d frames, want 2", len(msg.Frames))
	}

	gotID, payload, err := Decode(msg)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if gotID != id {
		t.Fatalf("Decode() id = %v, want %v", gotID, id)
	}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsShortHeader(t *testing.T) {
	msg := Encode(NewEventID(0, 0), nil)
	msg.Frames[0] = msg.Frames[0][:8]
	if _, _, err := Decode(msg); err == nil {
		t.Fatal("expected error for short header frame")
	}
}

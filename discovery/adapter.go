package discovery

import "github.com/google/uuid"

// ServiceName is the zero-configuration service name publishers
// announce on, per spec.md §6.
const ServiceName = "_zeroeq_pub._tcp"

// Metadata keys carried alongside each announcement, per spec.md §6.
const (
	KeyInstance    = "instance"
	KeyUser        = "user"
	KeyApplication = "application"
	KeySession     = "session"
)

// EventKind distinguishes a newly seen instance from one that has
// disappeared.
type EventKind int

const (
	// Added reports a newly discovered instance.
	Added EventKind = iota
	// Removed reports an instance that is no longer present.
	Removed
)

func (k EventKind) String() string {
	if k == Added {
		return "added"
	}
	return "removed"
}

// Instance is a discovery service record: spec.md §3's
// "{instance-uuid, user, application-name, session, host, port}".
type Instance struct {
	UUID        uuid.UUID
	User        string
	Application string
	Session     string
	Host        string
	Port        uint16
}

// Event is a single add/remove notification drained by Poll.
type Event struct {
	Kind     EventKind
	Instance Instance
}

// Adapter is the discovery collaborator interface required by
// spec.md §4.5. Implementations are pluggable; the receiver core and
// publisher/subscriber packages depend on nothing beyond this surface.
type Adapter interface {
	// Announce publishes this instance's metadata on ServiceName,
	// listening on port. iface carries the publisher's bound host
	// (empty for the wildcard); ZeroconfAdapter does not restrict the
	// announcement to it and registers on every interface zeroconf
	// selects.
	Announce(port uint16, iface string, metadata map[string]string) error

	// Retract withdraws a prior Announce. Safe to call when nothing
	// was announced.
	Retract() error

	// Browse starts a background browse for serviceName. Safe to call
	// more than once; subsequent calls are no-ops while a browse is
	// already running.
	Browse(serviceName string) error

	// Poll drains and returns all pending add/remove events observed
	// since the last call. It never blocks.
	Poll() []Event

	// IsAvailable probes whether a discovery backend is usable in the
	// current environment.
	IsAvailable() bool

	// Close stops any running browse and retracts any announcement.
	Close() error
}

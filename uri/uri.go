// Package uri parses the endpoint syntax used throughout the fabric:
// [scheme://][*|host|IP|iface][:port]. A URI is "fully qualified" when
// both host and port are present and neither is the wildcard, meaning
// a subscriber can connect directly without discovery.
package uri

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultScheme is used when a URI omits the scheme.
const DefaultScheme = "tcp"

// Wildcard denotes "any interface" for Host, both on input and as the
// bind address zmq4 understands.
const Wildcard = "*"

// URI is a parsed endpoint descriptor. The zero value represents "no
// host, no port" (equivalent to parsing the empty string).
type URI struct {
	Scheme   string
	Host     string
	Port     uint16
	hasHost  bool
	hasPort  bool
}

// Parse parses the "[scheme://][*|host|IP|iface][:port]" grammar. An
// empty string parses to the zero value and is not an error: spec.md
// explicitly allows an absent or partial URI, resolved via discovery.
func Parse(s string) (URI, error) {
	var u URI

	rest := s
	if idx := strings.Index(rest, "://"); idx >= 0 {
		u.Scheme = rest[:idx]
		rest = rest[idx+3:]
	}

	if rest == "" {
		return u, nil
	}

	host := rest
	if idx := strings.LastIndex(rest, ":"); idx >= 0 {
		host = rest[:idx]
		portStr := rest[idx+1:]
		if portStr != "" {
			port, err := strconv.ParseUint(portStr, 10, 16)
			if err != nil {
				return URI{}, fmt.Errorf("uri: invalid port %q: %w", portStr, err)
			}
			u.Port = uint16(port)
			u.hasPort = true
		}
	}

	if host != "" && host != Wildcard {
		u.Host = host
		u.hasHost = true
	} else if host == Wildcard {
		u.Host = Wildcard
		u.hasHost = true
	}

	return u, nil
}

// HasHost reports whether a concrete, non-wildcard host was supplied.
func (u URI) HasHost() bool { return u.hasHost && u.Host != Wildcard }

// HasAnyHost reports whether any host token, including the wildcard,
// was supplied.
func (u URI) HasAnyHost() bool { return u.hasHost }

// HasPort reports whether a port, including 0, was supplied.
func (u URI) HasPort() bool { return u.hasPort }

// FullyQualified reports whether both a concrete host and a non-zero
// port are present, i.e. this URI names a specific, connectable
// endpoint and bypasses discovery.
func (u URI) FullyQualified() bool {
	return u.HasHost() && u.hasPort && u.Port != 0
}

// SchemeOrDefault returns the scheme, defaulting to DefaultScheme.
func (u URI) SchemeOrDefault() string {
	if u.Scheme == "" {
		return DefaultScheme
	}
	return u.Scheme
}

// HostOrWildcard returns the host, defaulting to the wildcard.
func (u URI) HostOrWildcard() string {
	if !u.hasHost {
		return Wildcard
	}
	return u.Host
}

// ZMQEndpoint formats the URI the way zmq4's Listen/Dial expect:
// "scheme://host:port", defaulting scheme to tcp, host to *, and port
// to 0 (OS-assigned) when absent.
func (u URI) ZMQEndpoint() string {
	return fmt.Sprintf("%s://%s:%d", u.SchemeOrDefault(), u.HostOrWildcard(), u.Port)
}

// String formats the URI back into its canonical textual form.
func (u URI) String() string {
	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteString("://")
	}
	if u.hasHost {
		b.WriteString(u.Host)
	}
	if u.hasPort {
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(u.Port), 10))
	}
	return b.String()
}

// WithPort returns a copy of u with Port set and marked present, used
// after binding to record the OS-assigned port.
func (u URI) WithPort(port uint16) URI {
	u.Port = port
	u.hasPort = true
	return u
}

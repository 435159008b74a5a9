// Package session resolves the session label that pairs publishers and
// subscribers in the fabric. Two peers only exchange events if their
// session strings are equal.
package session

import (
	"errors"
	"os"
	"os/user"
)

const (
	// Default is the sentinel resolved at construction time to the
	// ZEROEQ_SESSION environment variable, or the current OS username
	// if that variable is unset or empty.
	Default = "default"

	// Null disables discovery announcement for a publisher. A
	// publisher constructed with this session still binds and accepts
	// direct subscriber connections; it simply never shows up in
	// zero-configuration discovery.
	Null = "null session"

	// EnvVar is the environment variable consulted when Default is
	// used.
	EnvVar = "ZEROEQ_SESSION"
)

// ErrEmpty is returned by Resolve when the caller-supplied session is
// the empty string; publishers reject empty sessions outright (spec
// §3), subscribers reject them too since an empty label can never
// usefully pair with anything.
var ErrEmpty = errors.New("session: empty session is not allowed")

// Resolve expands the Default sentinel into a concrete session label
// and rejects the empty string. Any other value, including Null, is
// returned unchanged.
func Resolve(session string) (string, error) {
	if session == "" {
		return "", ErrEmpty
	}
	if session != Default {
		return session, nil
	}
	if env := os.Getenv(EnvVar); env != "" {
		return env, nil
	}
	if name := currentUsername(); name != "" {
		return name, nil
	}
	// Neither the environment nor the OS could tell us who we are;
	// fall back to the sentinel itself so callers always get a
	// non-empty, stable session label.
	return Default, nil
}

// currentUsername probes the OS for the invoking user's name, tolerant
// of any failure (container images without /etc/passwd entries, CGO
// disabled, etc. all routinely fail user.Current()).
func currentUsername() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return ""
	}
	return u.Username
}

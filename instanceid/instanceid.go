// Package instanceid provides the small OS-specific probes used when
// announcing a publisher or subscriber instance: a fresh instance
// UUID, the running executable's basename, and the current username.
// Per spec.md §9 these probes are side helpers, not part of the core;
// announcement must still succeed if they return the empty string.
package instanceid

import (
	"os"
	"os/user"
	"path/filepath"

	"github.com/google/uuid"
)

// New generates a fresh 128-bit instance identifier. Self-connection
// suppression (spec.md §3 invariant "no subscriber ever connects to a
// publisher with the same instance UUID") relies on these being
// unique per process instance, not per process lifetime.
func New() uuid.UUID {
	return uuid.New()
}

// ExecutableName returns the basename of the running executable, or
// the empty string if it cannot be determined (sandboxed environments,
// exotic /proc layouts, etc.).
func ExecutableName() string {
	exe, err := os.Executable()
	if err != nil || exe == "" {
		return ""
	}
	return filepath.Base(exe)
}

// CurrentUser returns the invoking OS username, or the empty string if
// it cannot be determined.
func CurrentUser() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return ""
	}
	return u.Username
}

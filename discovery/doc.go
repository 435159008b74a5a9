// Package discovery implements spec.md §4.5: announcing a publisher
// instance via zero-configuration service discovery and browsing for
// peers, reporting add/remove events to callers that poll for them.
package discovery

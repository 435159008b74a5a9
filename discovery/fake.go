package discovery

import "sync"

// Fake is an in-memory Adapter for tests. Announce/Browse simply
// record their inputs; events queued with Inject are what Poll
// returns on the next call.
type Fake struct {
	mu        sync.Mutex
	events    []Event
	announced map[string]string
	retracted bool
}

// NewFake creates an empty Fake adapter.
func NewFake() *Fake {
	return &Fake{}
}

// Announce implements Adapter.
func (f *Fake) Announce(_ uint16, _ string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make(map[string]string, len(metadata))
	for k, v := range metadata {
		cp[k] = v
	}
	f.announced = cp
	f.retracted = false
	return nil
}

// Retract implements Adapter.
func (f *Fake) Retract() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retracted = true
	return nil
}

// Browse implements Adapter.
func (f *Fake) Browse(string) error { return nil }

// Poll implements Adapter.
func (f *Fake) Poll() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.events
	f.events = nil
	return out
}

// IsAvailable implements Adapter.
func (f *Fake) IsAvailable() bool { return true }

// Close implements Adapter.
func (f *Fake) Close() error { return f.Retract() }

// Inject queues an event for the next Poll call.
func (f *Fake) Inject(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

// Announced returns the most recent Announce metadata, or nil if
// Retract was the most recent call.
func (f *Fake) Announced() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retracted {
		return nil
	}
	return f.announced
}

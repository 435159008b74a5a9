package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
	"golang.org/x/sync/errgroup"
)

// domain is the mDNS domain all announcements and browses use.
const domain = "local."

// expiry is how long an instance may go unseen in a browse before
// ZeroconfAdapter synthesizes a Removed event for it. grandcat/zeroconf
// re-delivers live entries roughly every browse interval rather than
// sending an explicit goodbye, so removal is inferred from silence.
const expiry = 3 * time.Second

// ZeroconfAdapter is the default Adapter, backed by mDNS/DNS-SD via
// github.com/grandcat/zeroconf.
type ZeroconfAdapter struct {
	mu        sync.Mutex
	server    *zeroconf.Server
	cancel    context.CancelFunc
	events    chan Event
	instances map[string]trackedInstance
	expiry    time.Duration
}

type trackedInstance struct {
	instance Instance
	lastSeen time.Time
}

// NewZeroconfAdapter creates an adapter with no announcement and no
// browse in progress.
func NewZeroconfAdapter() *ZeroconfAdapter {
	return &ZeroconfAdapter{
		events:    make(chan Event, 64),
		instances: make(map[string]trackedInstance),
		expiry:    expiry,
	}
}

// IsAvailable reports whether an mDNS resolver can be constructed in
// the current environment.
func (a *ZeroconfAdapter) IsAvailable() bool {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return false
	}
	_ = r
	return true
}

// Announce implements Adapter.
func (a *ZeroconfAdapter) Announce(port uint16, iface string, metadata map[string]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	instance := metadata[KeyInstance]
	if instance == "" {
		return fmt.Errorf("discovery: announce requires %q metadata", KeyInstance)
	}

	var ifaces []string
	if iface != "" {
		ifaces = []string{iface}
	}
	_ = ifaces // grandcat/zeroconf selects interfaces automatically; kept for documentation of intent.

	server, err := zeroconf.Register(instance, ServiceName, domain, int(port), metadataToTXT(metadata), nil)
	if err != nil {
		return fmt.Errorf("discovery: announce failed: %w", err)
	}
	a.server = server
	return nil
}

// Retract implements Adapter.
func (a *ZeroconfAdapter) Retract() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	return nil
}

// Browse implements Adapter.
func (a *ZeroconfAdapter) Browse(serviceName string) error {
	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return nil
	}
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		a.mu.Unlock()
		return fmt.Errorf("discovery: resolver unavailable: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.mu.Unlock()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return resolver.Browse(gctx, serviceName, domain, entries)
	})
	g.Go(func() error {
		a.consume(ctx, entries)
		return nil
	})
	g.Go(func() error {
		a.sweepExpired(ctx)
		return nil
	})
	go func() { _ = g.Wait() }()
	return nil
}

func (a *ZeroconfAdapter) consume(ctx context.Context, entries <-chan *zeroconf.ServiceEntry) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-entries:
			if !ok {
				return
			}
			inst, ok := instanceFromEntry(entry)
			if !ok {
				continue
			}
			a.mu.Lock()
			_, existed := a.instances[entry.Instance]
			a.instances[entry.Instance] = trackedInstance{instance: inst, lastSeen: time.Now()}
			a.mu.Unlock()
			if !existed {
				a.emit(Event{Kind: Added, Instance: inst})
			}
		}
	}
}

func (a *ZeroconfAdapter) sweepExpired(ctx context.Context) {
	ticker := time.NewTicker(a.expiry)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-a.expiry)
			a.mu.Lock()
			var expired []Instance
			for key, ti := range a.instances {
				if ti.lastSeen.Before(cutoff) {
					expired = append(expired, ti.instance)
					delete(a.instances, key)
				}
			}
			a.mu.Unlock()
			for _, inst := range expired {
				a.emit(Event{Kind: Removed, Instance: inst})
			}
		}
	}
}

func (a *ZeroconfAdapter) emit(ev Event) {
	select {
	case a.events <- ev:
	default:
		// Events channel full; drop rather than block the browse
		// goroutine. A slow consumer misses discovery updates the
		// same way a slow subscriber misses published events (spec.md
		// §1 Non-goals).
	}
}

// Poll implements Adapter.
func (a *ZeroconfAdapter) Poll() []Event {
	var out []Event
	for {
		select {
		case ev := <-a.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Close implements Adapter.
func (a *ZeroconfAdapter) Close() error {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return a.Retract()
}

func instanceFromEntry(entry *zeroconf.ServiceEntry) (Instance, bool) {
	meta := txtToMetadata(entry.Text)
	id, err := uuid.Parse(meta[KeyInstance])
	if err != nil {
		return Instance{}, false
	}

	host := entry.HostName
	if len(entry.AddrIPv4) > 0 {
		host = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		host = entry.AddrIPv6[0].String()
	}

	return Instance{
		UUID:        id,
		User:        meta[KeyUser],
		Application: meta[KeyApplication],
		Session:     meta[KeySession],
		Host:        host,
		Port:        uint16(entry.Port),
	}, true
}

func metadataToTXT(metadata map[string]string) []string {
	txt := make([]string, 0, len(metadata))
	for k, v := range metadata {
		txt = append(txt, k+"="+v)
	}
	return txt
}

func txtToMetadata(txt []string) map[string]string {
	meta := make(map[string]string, len(txt))
	for _, kv := range txt {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		meta[k] = v
	}
	return meta
}

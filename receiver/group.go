package receiver

import (
	"log"
	"sync"
	"time"

	"github.com/zeroeq-go/zeroeq/transport"
)

// TimeoutIndefinite makes Receive block until at least one event has
// been processed, still calling Update on every registered receiver
// roughly once per second so topology changes (e.g. new discovery
// results) are observed even without traffic.
const TimeoutIndefinite time.Duration = -1

// pollTick bounds how often a blocked poll re-checks socket readiness.
// It only affects latency of returning true/false within a wait
// window, not correctness: Sockets buffer via channels and cannot miss
// a notification the way an edge-triggered OS poll can.
const pollTick = 2 * time.Millisecond

// maxBlock is the block budget cap from spec.md §4.4 step 2: the inner
// poll never blocks longer than this in a single wait, so every
// receiver's Update runs at least this often during a long Receive.
const maxBlock = time.Second

// Group is the shared receiver core: it owns the set of attached
// Receivers and implements the receive(timeout) algorithm from
// spec.md §4.4. The zero value is ready to use.
type Group struct {
	mu        sync.Mutex
	receivers []Receiver
}

// NewGroup creates an empty, unshared Group.
func NewGroup() *Group {
	return &Group{}
}

// Register attaches r to the group. Receivers register themselves on
// construction (spec.md's Design Note 9) and Deregister on close.
func (g *Group) Register(r Receiver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.receivers = append(g.receivers, r)
}

// Deregister detaches r from the group. A no-op if r is not attached.
func (g *Group) Deregister(r Receiver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, rr := range g.receivers {
		if rr == r {
			g.receivers = append(g.receivers[:i], g.receivers[i+1:]...)
			return
		}
	}
}

// Receive attempts to deliver at least one event within timeout,
// returning true if any event was processed and false on timeout.
// TimeoutIndefinite loops forever until data arrives.
func (g *Group) Receive(timeout time.Duration) bool {
	if timeout == TimeoutIndefinite {
		return g.receiveIndefinite()
	}

	block := timeout / 10
	if block > maxBlock {
		block = maxBlock
	}
	if block < 0 {
		block = 0
	}

	start := time.Now()
	for {
		g.updateAll()

		elapsed := time.Since(start)
		var wait time.Duration
		if elapsed < timeout {
			wait = timeout - elapsed
			if wait > block {
				wait = block
			}
		}

		if g.pollOnce(wait) {
			return true
		}
		if time.Since(start) >= timeout {
			return false
		}
	}
}

func (g *Group) receiveIndefinite() bool {
	for {
		g.updateAll()
		if g.pollOnce(maxBlock) {
			return true
		}
	}
}

func (g *Group) updateAll() {
	for _, r := range g.snapshot() {
		r.Update()
	}
}

func (g *Group) snapshot() []Receiver {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Receiver, len(g.receivers))
	copy(out, g.receivers)
	return out
}

// pollOnce runs spec.md §4.4 steps 3-6 once, then drains (step 7):
// after any socket fires, it re-polls non-blockingly until a pass
// finds nothing ready, only then returning true.
func (g *Group) pollOnce(wait time.Duration) bool {
	haveData := false
	timeout := wait
	for {
		sockets, owners := g.gatherSockets()
		ready := scanReady(sockets, timeout)
		if len(ready) == 0 {
			return haveData
		}
		for _, idx := range ready {
			if err := owners[idx].Process(sockets[idx]); err != nil {
				log.Printf("zeroeq: receive: %v", err)
			}
			haveData = true
		}
		timeout = 0 // edge-trigger drain: subsequent polls are non-blocking.
	}
}

func (g *Group) gatherSockets() ([]*transport.Socket, []Receiver) {
	var sockets []*transport.Socket
	var owners []Receiver
	for _, r := range g.snapshot() {
		before := len(sockets)
		sockets = r.AddSockets(sockets)
		for range sockets[before:] {
			owners = append(owners, r)
		}
	}
	return sockets, owners
}

// scanReady returns the indices of sockets with data pending, waiting
// up to wait for at least one to become ready.
func scanReady(sockets []*transport.Socket, wait time.Duration) []int {
	deadline := time.Now().Add(wait)
	for {
		var ready []int
		for i, s := range sockets {
			if s.Poll() {
				ready = append(ready, i)
			}
		}
		if len(ready) > 0 {
			return ready
		}
		if wait <= 0 || time.Now().After(deadline) {
			return nil
		}
		time.Sleep(pollTick)
	}
}

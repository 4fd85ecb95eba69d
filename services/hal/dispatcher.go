// services/hal/dispatcher.go
package hal

import (
	"context"
	"sync"
	"sync/atomic"

	"boardhal-go/types"
)

// dispatcher demultiplexes raw edge notifications from the native layer to
// the live pin that owns each pin number. The native callback runs on an
// interrupt-originated path, so it only does a non-blocking enqueue; a
// routing goroutine does the table lookup and hands the edge to the pin.
//
// The table holds back-references only: the dispatcher never owns a pin and
// never keeps one alive.
type dispatcher struct {
	// Written by the native edge callback; MUST NOT block it:
	evQ chan rawEvent

	stopped chan struct{}

	mu   sync.RWMutex
	pins map[int]*Pin

	drops uint32 // edge-callback overflow counter
}

type rawEvent struct {
	pin  int
	edge types.Edge
}

func newDispatcher(buf int) *dispatcher {
	if buf <= 0 {
		buf = 64
	}
	return &dispatcher{
		evQ:     make(chan rawEvent, buf),
		stopped: make(chan struct{}),
		pins:    map[int]*Pin{},
	}
}

func (d *dispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-d.evQ:
				d.route(ev)
			}
		}
	}()
}

// OnPinChanged is the inbound native edge callback.
func (d *dispatcher) OnPinChanged(pin int, edge types.Edge) {
	select {
	case d.evQ <- rawEvent{pin: pin, edge: edge}:
	default:
		atomic.AddUint32(&d.drops, 1) // protect the interrupt path
	}
}

// route looks up the owning pin and forwards the edge. An unregistered pin
// number is a race with teardown, not an error; the event is dropped. The
// table lock is released before calling into the pin so the dispatcher and
// pin locks never nest.
func (d *dispatcher) route(ev rawEvent) {
	d.mu.RLock()
	p := d.pins[ev.pin]
	d.mu.RUnlock()
	if p == nil {
		return
	}
	p.deliverEdge(ev.edge)
}

func (d *dispatcher) addPin(n int, p *Pin) {
	d.mu.Lock()
	d.pins[n] = p
	d.mu.Unlock()
}

// removePin guarantees that no dispatch started after it returns can
// observe the removed pin.
func (d *dispatcher) removePin(n int) {
	d.mu.Lock()
	delete(d.pins, n)
	d.mu.Unlock()
}

func (d *dispatcher) count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.pins)
}

// Drops reports how many edge notifications were discarded because the
// queue was full.
func (d *dispatcher) Drops() uint32 { return atomic.LoadUint32(&d.drops) }

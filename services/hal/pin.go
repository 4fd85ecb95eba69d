// services/hal/pin.go
package hal

import (
	"sync"
	"time"

	"boardhal-go/errcode"
	"boardhal-go/types"
)

// ValueChangedHandler receives accepted edge events for a pin. Handlers run
// synchronously on the dispatch path: a slow handler delays the next event
// for its pin but never holds the pin's lock.
type ValueChangedHandler func(edge types.Edge, v types.Value)

type watcher struct {
	id int
	fn ValueChangedHandler
}

// Pin is one claimed physical pin: drive-mode state machine, debounce
// window, subscriber chain and guarded teardown. A Pin starts in Input mode
// and stays registered with the dispatcher until Close.
type Pin struct {
	number  int
	sharing types.SharingMode
	gpio    *GPIO

	mu        sync.Mutex
	mode      types.DriveMode
	debounce  time.Duration
	lastOut   types.Value
	subs      []watcher
	nextSubID int
	lastEvent time.Time // last accepted edge; zero until the first one
	disposed  bool
}

// Number is the physical pin identifier, immutable for the pin's lifetime.
func (p *Pin) Number() int { return p.number }

// SharingMode reports the mode requested at acquisition. The base
// implementation grants exclusive semantics regardless; see OpenPin.
func (p *Pin) SharingMode() types.SharingMode { return p.sharing }

func (p *Pin) DriveMode() types.DriveMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// IsDriveModeSupported is a pure capability query; no native configuration
// happens. Base drivers support only the four software-emulatable modes.
func (p *Pin) IsDriveModeSupported(mode types.DriveMode) bool {
	return p.gpio.native.DriveModeSupported(p.number, mode)
}

// SetDriveMode reprograms the pin's electrical configuration. On native
// failure the in-memory mode is left unchanged. Entering an output-family
// mode applies the latched output value immediately.
func (p *Pin) SetDriveMode(mode types.DriveMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return errcode.Wrap(errcode.Disposed, "SetDriveMode", nil)
	}
	if !p.gpio.native.DriveModeSupported(p.number, mode) {
		return errcode.New(errcode.UnsupportedDriveMode, "SetDriveMode", mode.String())
	}
	if err := p.gpio.native.SetDriveMode(p.number, mode); err != nil {
		return errcode.Wrap(errcode.HardwareConfig, "SetDriveMode", err)
	}
	p.mode = mode
	if mode.IsOutput() {
		p.gpio.native.Write(p.number, p.lastOut)
	}
	return nil
}

// Read samples the pin level.
func (p *Pin) Read() (types.Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return types.Low, errcode.Wrap(errcode.Disposed, "Read", nil)
	}
	return p.gpio.native.Read(p.number), nil
}

// Write latches v as the pin's output value. While the drive mode is in the
// input family the value is only held; it reaches the electrical layer the
// moment the mode switches to an output-family mode.
func (p *Pin) Write(v types.Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return errcode.Wrap(errcode.Disposed, "Write", nil)
	}
	p.lastOut = v
	if p.mode.IsOutput() {
		p.gpio.native.Write(p.number, v)
	}
	return nil
}

// Debounce returns the current suppression window.
func (p *Pin) Debounce() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.debounce
}

// SetDebounce sets the window within which edges following an accepted edge
// are discarded. Negative values are treated as zero.
func (p *Pin) SetDebounce(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return errcode.Wrap(errcode.Disposed, "SetDebounce", nil)
	}
	if d < 0 {
		d = 0
	}
	p.debounce = d
	return nil
}

// Subscribe appends fn to the pin's callback chain and enables native edge
// interrupts. The chain is installed speculatively: if interrupt enablement
// fails, the chain is rolled back before the error is returned, so the
// observable subscriber set never reflects a subscription whose enablement
// failed. The returned id identifies the subscription for Unsubscribe.
func (p *Pin) Subscribe(fn ValueChangedHandler) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return 0, errcode.Wrap(errcode.Disposed, "Subscribe", nil)
	}

	p.nextSubID++
	id := p.nextSubID
	prev := p.subs
	p.subs = append(append([]watcher(nil), prev...), watcher{id: id, fn: fn})

	if err := p.gpio.native.SetInterruptEnabled(p.number, true); err != nil {
		p.subs = prev
		return 0, errcode.Wrap(errcode.HardwareConfig, "Subscribe", err)
	}
	return id, nil
}

// Unsubscribe removes the subscription with the given id. Removing the last
// subscriber disables native interrupt generation; a failed disable is
// tolerated (an enabled interrupt with an empty chain is harmless).
func (p *Pin) Unsubscribe(id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return errcode.Wrap(errcode.Disposed, "Unsubscribe", nil)
	}
	for i, w := range p.subs {
		if w.id == id {
			p.subs = append(append([]watcher(nil), p.subs[:i]...), p.subs[i+1:]...)
			if len(p.subs) == 0 {
				_ = p.gpio.native.SetInterruptEnabled(p.number, false)
			}
			return nil
		}
	}
	return errcode.NotFound
}

// deliverEdge is the dispatcher's entry point. Events within the debounce
// window of the last accepted edge are discarded before reaching
// subscribers. Handlers are invoked on a snapshot taken under the lock, then
// the lock is released, so a handler can call back into the pin.
func (p *Pin) deliverEdge(edge types.Edge) {
	p.mu.Lock()
	if p.disposed || len(p.subs) == 0 {
		p.mu.Unlock()
		return
	}

	now := time.Now()
	if !p.lastEvent.IsZero() && now.Sub(p.lastEvent) < p.debounce {
		p.mu.Unlock()
		return
	}
	p.lastEvent = now

	snapshot := make([]watcher, len(p.subs))
	copy(snapshot, p.subs)
	v := p.gpio.native.Read(p.number)
	p.mu.Unlock()

	for _, w := range snapshot {
		w.fn(edge, v)
	}
}

// Close releases the pin: it deregisters from the dispatcher, disables
// interrupt generation and releases the native claim. Close is idempotent;
// a second call is a no-op. After Close, every other operation reports
// errcode.Disposed, and no event delivery reaches the subscriber chain.
func (p *Pin) Close() error {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return nil
	}
	p.disposed = true
	p.subs = nil
	p.mu.Unlock()

	p.gpio.disp.removePin(p.number)
	_ = p.gpio.native.SetInterruptEnabled(p.number, false)
	p.gpio.native.Release(p.number)
	return nil
}

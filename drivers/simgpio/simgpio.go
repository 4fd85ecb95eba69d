// drivers/simgpio/simgpio.go

// Package simgpio is an in-memory NativeGPIO backend. It backs the GPIO
// default creator on hosts without hardware and drives the package's own
// tests: input levels are set programmatically and edges fire through the
// installed callback exactly as a hardware driver would report them.
package simgpio

import (
	"sync"

	"boardhal-go/types"
)

type Driver struct {
	mu      sync.Mutex
	npins   int
	claimed map[int]bool
	irq     map[int]bool
	levels  []types.Value
	modes   []types.DriveMode
	edgeFn  func(pin int, edge types.Edge)

	// Fault hooks for tests; nil means never fail.
	ModeErr func(pin int, mode types.DriveMode) error
	IRQErr  func(pin int, enabled bool) error
}

// New creates a simulated board with pins numbered [0, npins).
func New(npins int) *Driver {
	if npins <= 0 {
		npins = 32
	}
	return &Driver{
		npins:   npins,
		claimed: map[int]bool{},
		irq:     map[int]bool{},
		levels:  make([]types.Value, npins),
		modes:   make([]types.DriveMode, npins),
	}
}

func (d *Driver) exists(pin int) bool { return pin >= 0 && pin < d.npins }

func (d *Driver) Claim(pin int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.exists(pin) || d.claimed[pin] {
		return false
	}
	d.claimed[pin] = true
	return true
}

func (d *Driver) Release(pin int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.claimed, pin)
	delete(d.irq, pin)
}

func (d *Driver) SetDriveMode(pin int, mode types.DriveMode) error {
	if d.ModeErr != nil {
		if err := d.ModeErr(pin, mode); err != nil {
			return err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.exists(pin) {
		d.modes[pin] = mode
	}
	return nil
}

func (d *Driver) Read(pin int) types.Value {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.exists(pin) {
		return types.Low
	}
	return d.levels[pin]
}

func (d *Driver) Write(pin int, v types.Value) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.exists(pin) {
		d.levels[pin] = v
	}
}

func (d *Driver) SetInterruptEnabled(pin int, enabled bool) error {
	if d.IRQErr != nil {
		if err := d.IRQErr(pin, enabled); err != nil {
			return err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if enabled {
		d.irq[pin] = true
	} else {
		delete(d.irq, pin)
	}
	return nil
}

// DriveModeSupported reports the four software-emulatable modes.
func (d *Driver) DriveModeSupported(pin int, mode types.DriveMode) bool {
	if !d.exists(pin) {
		return false
	}
	switch mode {
	case types.Input, types.Output, types.InputPullUp, types.InputPullDown:
		return true
	default:
		return false
	}
}

func (d *Driver) SetEdgeFunc(fn func(pin int, edge types.Edge)) {
	d.mu.Lock()
	d.edgeFn = fn
	d.mu.Unlock()
}

// SetLevel drives the simulated external signal on a pin. A level change
// fires the edge callback when interrupts are enabled for that pin. The
// callback runs outside the driver lock, as a hardware ISR would.
func (d *Driver) SetLevel(pin int, v types.Value) {
	d.mu.Lock()
	if !d.exists(pin) {
		d.mu.Unlock()
		return
	}
	prev := d.levels[pin]
	d.levels[pin] = v
	fire := d.irq[pin] && prev != v && d.edgeFn != nil
	fn := d.edgeFn
	d.mu.Unlock()

	if fire {
		edge := types.EdgeRising
		if v == types.Low {
			edge = types.EdgeFalling
		}
		fn(pin, edge)
	}
}

// Pulse toggles the level away and back, producing two edges.
func (d *Driver) Pulse(pin int) {
	cur := d.Read(pin)
	next := types.High
	if cur == types.High {
		next = types.Low
	}
	d.SetLevel(pin, next)
	d.SetLevel(pin, cur)
}

// Level is the observation side of SetLevel, for tests asserting on driven
// outputs.
func (d *Driver) Level(pin int) types.Value { return d.Read(pin) }

// InterruptEnabled reports the simulated interrupt gate for a pin.
func (d *Driver) InterruptEnabled(pin int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.irq[pin]
}

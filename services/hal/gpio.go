// services/hal/gpio.go
package hal

import (
	"context"

	"boardhal-go/errcode"
	"boardhal-go/types"
)

// GPIO multiplexes one native GPIO driver across many live pins. It owns
// the event dispatcher and wires the driver's edge callback into it.
type GPIO struct {
	native NativeGPIO
	disp   *dispatcher
}

// NewGPIO binds a native driver and starts edge dispatch. The dispatcher
// goroutine stops when ctx is cancelled.
func NewGPIO(ctx context.Context, native NativeGPIO) *GPIO {
	g := &GPIO{
		native: native,
		disp:   newDispatcher(64),
	}
	native.SetEdgeFunc(g.disp.OnPinChanged)
	g.disp.Start(ctx)
	return g
}

// OpenPin claims a physical pin and returns its resource. The native Claim
// is the arbiter for concurrent acquisition: when two callers race for the
// same number, exactly one succeeds and the other reports
// errcode.PinUnavailable. A freshly opened pin is in Input mode.
//
// SharedReadOnly is accepted as a request but this implementation always
// grants exclusive semantics; the requested mode is recorded and reported,
// no error is raised. Drivers with true sharing support sit behind the same
// native boundary.
func (g *GPIO) OpenPin(number int, sharing types.SharingMode) (*Pin, error) {
	if !g.native.Claim(number) {
		return nil, errcode.New(errcode.PinUnavailable, "OpenPin", "")
	}

	if err := g.native.SetDriveMode(number, types.Input); err != nil {
		g.native.Release(number)
		return nil, errcode.Wrap(errcode.HardwareConfig, "OpenPin", err)
	}

	p := &Pin{
		number:  number,
		sharing: sharing,
		gpio:    g,
		mode:    types.Input,
	}
	g.disp.addPin(number, p)
	return p, nil
}

// OpenPins reports how many pins are currently live.
func (g *GPIO) OpenPins() int { return g.disp.count() }

// Drops reports how many native edge notifications were discarded because
// the dispatch queue was full.
func (g *GPIO) Drops() uint32 { return g.disp.Drops() }

// services/hal/native.go
package hal

import "boardhal-go/types"

// NativeGPIO is the narrow boundary to the electrical layer. Implementations
// own claim arbitration, register access and interrupt generation; the
// managed side never sees more than this surface.
//
// All calls are expected to be bounded register-style operations, not I/O
// waits. Claim is the single arbiter for pin ownership: when two callers
// race, exactly one Claim returns true.
type NativeGPIO interface {
	// Claim reserves a pin exclusively. It returns false if the pin is
	// already claimed or does not exist on the board.
	Claim(pin int) bool
	Release(pin int)

	SetDriveMode(pin int, mode types.DriveMode) error
	Read(pin int) types.Value
	Write(pin int, v types.Value)

	// SetInterruptEnabled turns edge-interrupt generation for the pin on or
	// off. Edges are reported through the function installed by SetEdgeFunc.
	SetInterruptEnabled(pin int, enabled bool) error

	// DriveModeSupported is a pure capability query with no electrical side
	// effect.
	DriveModeSupported(pin int, mode types.DriveMode) bool

	// SetEdgeFunc installs the inbound edge callback. The driver invokes fn
	// asynchronously, possibly from an interrupt-originated goroutine; fn
	// must not block.
	SetEdgeFunc(fn func(pin int, edge types.Edge))
}

// services/hal/controller.go
package hal

import (
	"context"

	"tinygo.org/x/drivers"

	"boardhal-go/types"
)

// Controller wrappers: thin front doors that turn registry default
// resolution into a usable provider object. Absence of a default is an
// expected outcome ("no default controller available"), never an error.

// defaultProvider resolves the default for a type down to a managed object.
// A record-based resolution carries opaque native handles; only the driver
// that registered the record can turn those into a live object, which it
// exposes through the type's creator. So: creator-built resolutions are
// used directly, record resolutions fall back to the creator for the
// object.
func defaultProvider(reg *Registry, t types.ControllerType) (any, bool) {
	res, ok := reg.ResolveDefault(t)
	if !ok {
		return nil, false
	}
	if res.Provider != nil {
		return res.Provider, true
	}
	return reg.DefaultFromCreator(t)
}

// DefaultGPIO resolves the default GPIO provider and binds it into a GPIO
// front object.
func DefaultGPIO(ctx context.Context, reg *Registry) (*GPIO, bool) {
	p, ok := defaultProvider(reg, types.ControllerGPIO)
	if !ok {
		return nil, false
	}
	native, ok := p.(NativeGPIO)
	if !ok {
		return nil, false
	}
	return NewGPIO(ctx, native), true
}

// DefaultI2C resolves the default I2C provider as a drivers.I2C bus.
func DefaultI2C(reg *Registry) (drivers.I2C, bool) {
	p, ok := defaultProvider(reg, types.ControllerI2C)
	if !ok {
		return nil, false
	}
	bus, ok := p.(drivers.I2C)
	return bus, ok
}

// DefaultSPI resolves the default SPI provider as a drivers.SPI bus.
func DefaultSPI(reg *Registry) (drivers.SPI, bool) {
	p, ok := defaultProvider(reg, types.ControllerSPI)
	if !ok {
		return nil, false
	}
	bus, ok := p.(drivers.SPI)
	return bus, ok
}

// types/types.go
package types

// -----------------------------------------------------------------------------
// Controller types
// -----------------------------------------------------------------------------

// ControllerType partitions the provider registry by peripheral category.
type ControllerType uint16

const (
	ControllerGPIO ControllerType = iota
	ControllerSPI
	ControllerI2C
	ControllerADC
	ControllerDAC
	ControllerPWM
	ControllerSerial
	ControllerOneWire
)

// ControllerCustomBase is the first value reserved for out-of-tree drivers.
// Values below it belong to this package.
const ControllerCustomBase ControllerType = 0x100

func (t ControllerType) String() string {
	switch t {
	case ControllerGPIO:
		return "gpio"
	case ControllerSPI:
		return "spi"
	case ControllerI2C:
		return "i2c"
	case ControllerADC:
		return "adc"
	case ControllerDAC:
		return "dac"
	case ControllerPWM:
		return "pwm"
	case ControllerSerial:
		return "serial"
	case ControllerOneWire:
		return "onewire"
	default:
		return "custom"
	}
}

// ParseControllerType maps a config string to a ControllerType.
func ParseControllerType(s string) (ControllerType, bool) {
	switch s {
	case "gpio":
		return ControllerGPIO, true
	case "spi":
		return ControllerSPI, true
	case "i2c":
		return ControllerI2C, true
	case "adc":
		return ControllerADC, true
	case "dac":
		return ControllerDAC, true
	case "pwm":
		return ControllerPWM, true
	case "serial":
		return ControllerSerial, true
	case "onewire":
		return ControllerOneWire, true
	default:
		return 0, false
	}
}

// -----------------------------------------------------------------------------
// Pin state
// -----------------------------------------------------------------------------

// DriveMode is the electrical configuration of a claimed pin.
type DriveMode uint8

const (
	Input DriveMode = iota
	Output
	InputPullUp
	InputPullDown
	OutputOpenDrain
	OutputOpenDrainPullUp
	OutputOpenSource
	OutputOpenSourcePullDown
)

// IsOutput reports whether m is in the output family. Writes only reach the
// electrical layer while the pin is in one of these modes.
func (m DriveMode) IsOutput() bool {
	switch m {
	case Output, OutputOpenDrain, OutputOpenDrainPullUp,
		OutputOpenSource, OutputOpenSourcePullDown:
		return true
	default:
		return false
	}
}

func (m DriveMode) String() string {
	switch m {
	case Input:
		return "input"
	case Output:
		return "output"
	case InputPullUp:
		return "input_pull_up"
	case InputPullDown:
		return "input_pull_down"
	case OutputOpenDrain:
		return "output_open_drain"
	case OutputOpenDrainPullUp:
		return "output_open_drain_pull_up"
	case OutputOpenSource:
		return "output_open_source"
	case OutputOpenSourcePullDown:
		return "output_open_source_pull_down"
	default:
		return "unknown"
	}
}

// ParseDriveMode maps a config string to a DriveMode.
func ParseDriveMode(s string) (DriveMode, bool) {
	for m := Input; m <= OutputOpenSourcePullDown; m++ {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

// SharingMode is requested at pin acquisition and fixed for the pin's life.
type SharingMode uint8

const (
	Exclusive SharingMode = iota
	SharedReadOnly
)

func (s SharingMode) String() string {
	if s == SharedReadOnly {
		return "shared_read_only"
	}
	return "exclusive"
}

// Value is a digital pin level.
type Value uint8

const (
	Low Value = iota
	High
)

func (v Value) String() string {
	if v == High {
		return "high"
	}
	return "low"
}

// Int returns 0 or 1 for event payloads.
func (v Value) Int() int {
	if v == High {
		return 1
	}
	return 0
}

// -----------------------------------------------------------------------------
// Edges
// -----------------------------------------------------------------------------

// Edge is a transition on a digital input.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// ParseEdge maps a config string to an Edge; unknown strings are EdgeNone.
func ParseEdge(s string) Edge {
	switch s {
	case "rising":
		return EdgeRising
	case "falling":
		return EdgeFalling
	case "both":
		return EdgeBoth
	default:
		return EdgeNone
	}
}

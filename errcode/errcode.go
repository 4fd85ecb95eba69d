package errcode

// Code is a stable error identifier for registry and pin operations.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	DuplicateName        Code = "duplicate_name"
	NotFound             Code = "not_found"
	PinUnavailable       Code = "pin_unavailable"
	HardwareConfig       Code = "hw_config_failed"
	Disposed             Code = "disposed"
	UnsupportedDriveMode Code = "unsupported_drive_mode"

	Error Code = "error" // generic fallback
)

// E keeps an operation name and a cause alongside the code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.Disposed) match wrapped errors.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && e.C == c
}

// Wrap attaches a code and operation to a cause.
func Wrap(c Code, op string, err error) error {
	return &E{C: c, Op: op, Err: err}
}

// New builds a coded error with a message and no cause.
func New(c Code, op, msg string) error {
	return &E{C: c, Op: op, Msg: msg}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

package errcode

import (
	"errors"
	"testing"
)

func TestOf_PlainCode(t *testing.T) {
	if got := Of(PinUnavailable); got != PinUnavailable {
		t.Fatalf("Of(PinUnavailable) = %q", got)
	}
	if got := Of(nil); got != OK {
		t.Fatalf("Of(nil) = %q", got)
	}
}

func TestOf_Wrapped(t *testing.T) {
	err := Wrap(HardwareConfig, "SetDriveMode", errors.New("bus fault"))
	if got := Of(err); got != HardwareConfig {
		t.Fatalf("Of(wrapped) = %q", got)
	}
}

func TestErrorsIs_MatchesCode(t *testing.T) {
	err := Wrap(Disposed, "Write", nil)
	if !errors.Is(err, Disposed) {
		t.Fatal("errors.Is should match the wrapped code")
	}
	if errors.Is(err, PinUnavailable) {
		t.Fatal("errors.Is matched the wrong code")
	}
}

func TestErrorString(t *testing.T) {
	err := New(DuplicateName, "Add", `name "native"`)
	want := `Add: duplicate_name: name "native"`
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestUnwrap_KeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(Error, "op", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause should be reachable via Unwrap")
	}
}

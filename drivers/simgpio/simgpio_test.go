package simgpio

import (
	"testing"

	"boardhal-go/types"
)

func TestClaimSemantics(t *testing.T) {
	d := New(4)

	if !d.Claim(0) {
		t.Fatal("first claim should succeed")
	}
	if d.Claim(0) {
		t.Fatal("double claim should fail")
	}
	if d.Claim(4) || d.Claim(-1) {
		t.Fatal("off-board pins must not be claimable")
	}

	d.Release(0)
	if !d.Claim(0) {
		t.Fatal("claim after release should succeed")
	}
}

func TestEdgeGatedByInterruptEnable(t *testing.T) {
	d := New(4)

	var fired []types.Edge
	d.SetEdgeFunc(func(pin int, edge types.Edge) {
		fired = append(fired, edge)
	})

	// Interrupts off: level changes are silent.
	d.SetLevel(1, types.High)
	if len(fired) != 0 {
		t.Fatalf("edge fired with interrupts disabled: %v", fired)
	}

	if err := d.SetInterruptEnabled(1, true); err != nil {
		t.Fatal(err)
	}
	d.SetLevel(1, types.Low)
	d.SetLevel(1, types.High)
	if len(fired) != 2 || fired[0] != types.EdgeFalling || fired[1] != types.EdgeRising {
		t.Fatalf("edges: %v", fired)
	}

	// No transition, no edge.
	d.SetLevel(1, types.High)
	if len(fired) != 2 {
		t.Fatalf("edge fired without a level change: %v", fired)
	}
}

func TestReleaseClearsInterruptGate(t *testing.T) {
	d := New(4)
	if !d.Claim(2) {
		t.Fatal("claim failed")
	}
	if err := d.SetInterruptEnabled(2, true); err != nil {
		t.Fatal(err)
	}
	d.Release(2)
	if d.InterruptEnabled(2) {
		t.Fatal("release should drop the interrupt gate")
	}
}

func TestDriveModeSupported(t *testing.T) {
	d := New(4)
	for _, m := range []types.DriveMode{types.Input, types.Output, types.InputPullUp, types.InputPullDown} {
		if !d.DriveModeSupported(1, m) {
			t.Errorf("mode %v should be supported", m)
		}
	}
	for _, m := range []types.DriveMode{types.OutputOpenDrain, types.OutputOpenSource} {
		if d.DriveModeSupported(1, m) {
			t.Errorf("mode %v must be unsupported in the base driver", m)
		}
	}
	if d.DriveModeSupported(9, types.Input) {
		t.Error("off-board pin reports support")
	}
}

func TestPulseProducesTwoEdges(t *testing.T) {
	d := New(4)
	count := 0
	d.SetEdgeFunc(func(int, types.Edge) { count++ })
	if err := d.SetInterruptEnabled(0, true); err != nil {
		t.Fatal(err)
	}
	d.Pulse(0)
	if count != 2 {
		t.Fatalf("pulse produced %d edges, want 2", count)
	}
}

package hal

import (
	"context"
	"testing"
	"time"

	"boardhal-go/bus"
	"boardhal-go/drivers/simgpio"
	"boardhal-go/logging"
	"boardhal-go/services/hal/config"
	"boardhal-go/types"
)

func startService(t *testing.T) (*bus.Connection, *simgpio.Driver, *Registry) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	b := bus.NewBus(16)
	sim := simgpio.New(16)
	reg := NewRegistry()
	reg.SetDefaultCreator(types.ControllerGPIO, func() any { return sim })

	go Run(ctx, b.NewConnection("hal"), logging.Discard(), reg)
	return b.NewConnection("test"), sim, reg
}

func waitState(t *testing.T, sub *bus.Subscription, level string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-sub.Channel():
			m, ok := msg.Payload.(map[string]any)
			if ok && m["level"] == level {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for state %q", level)
		}
	}
}

func request(t *testing.T, cli *bus.Connection, topic bus.Topic, payload any) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	reply, err := cli.RequestWait(ctx, cli.NewMessage(topic, payload, false))
	if err != nil {
		t.Fatalf("request %v: %v", topic, err)
	}
	m, ok := reply.Payload.(map[string]any)
	if !ok {
		t.Fatalf("reply payload %#v", reply.Payload)
	}
	return m
}

func TestService_ConfigureControlAndEvents(t *testing.T) {
	cli, sim, _ := startService(t)

	stateSub := cli.Subscribe(bus.Topic{"hal", "state"})
	defer stateSub.Unsubscribe()

	yes := true
	cfg := config.HALConfig{
		Pins: []config.Pin{
			{Pin: 4, Mode: "input", Watch: true},
			{Pin: 5, Mode: "output", Initial: &yes},
		},
	}
	cli.Publish(cli.NewMessage(bus.Topic{"config", "hal"}, cfg, true))
	waitState(t, stateSub, "ready")

	// The configured initial value was driven.
	if sim.Level(5) != types.High {
		t.Fatal("initial output value not applied")
	}

	// Control: read the input pin.
	m := request(t, cli, bus.Topic{"hal", "pin", 4, "control", "read"}, nil)
	if m["ok"] != true {
		t.Fatalf("read reply: %#v", m)
	}

	// Control: drive the output low.
	m = request(t, cli, bus.Topic{"hal", "pin", 5, "control", "write"},
		map[string]any{"value": 0})
	if m["ok"] != true {
		t.Fatalf("write reply: %#v", m)
	}
	if sim.Level(5) != types.Low {
		t.Fatal("write did not reach the pin")
	}

	// Control: unknown pin is an error reply, not silence.
	m = request(t, cli, bus.Topic{"hal", "pin", 12, "control", "read"}, nil)
	if m["ok"] != false {
		t.Fatalf("unknown pin reply: %#v", m)
	}

	// A watched pin republishes edges on the bus.
	evSub := cli.Subscribe(bus.Topic{"hal", "pin", 4, "event"})
	defer evSub.Unsubscribe()

	sim.SetLevel(4, types.High)
	select {
	case msg := <-evSub.Channel():
		m, ok := msg.Payload.(map[string]any)
		if !ok || m["edge"] != types.EdgeRising.String() {
			t.Fatalf("unexpected event payload: %#v", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for edge event")
	}
}

func TestService_SetModeAndDebounceControls(t *testing.T) {
	cli, _, _ := startService(t)

	stateSub := cli.Subscribe(bus.Topic{"hal", "state"})
	defer stateSub.Unsubscribe()

	cfg := config.HALConfig{Pins: []config.Pin{{Pin: 2}}}
	cli.Publish(cli.NewMessage(bus.Topic{"config", "hal"}, cfg, true))
	waitState(t, stateSub, "ready")

	m := request(t, cli, bus.Topic{"hal", "pin", 2, "control", "set_mode"},
		map[string]any{"mode": "output"})
	if m["ok"] != true {
		t.Fatalf("set_mode reply: %#v", m)
	}

	m = request(t, cli, bus.Topic{"hal", "pin", 2, "control", "set_debounce"},
		map[string]any{"debounce_ms": 25})
	if m["ok"] != true {
		t.Fatalf("set_debounce reply: %#v", m)
	}

	// Open-drain is not supported by the base driver.
	m = request(t, cli, bus.Topic{"hal", "pin", 2, "control", "set_mode"},
		map[string]any{"mode": "output_open_drain"})
	if m["ok"] != false {
		t.Fatalf("unsupported mode reply: %#v", m)
	}
}

func TestService_ReconfigureClosesDroppedPins(t *testing.T) {
	cli, sim, _ := startService(t)

	stateSub := cli.Subscribe(bus.Topic{"hal", "state"})
	defer stateSub.Unsubscribe()

	cli.Publish(cli.NewMessage(bus.Topic{"config", "hal"},
		config.HALConfig{Pins: []config.Pin{{Pin: 1}, {Pin: 2}}}, true))
	waitState(t, stateSub, "ready")

	// Second config drops pin 2; its claim must be released.
	cli.Publish(cli.NewMessage(bus.Topic{"config", "hal"},
		config.HALConfig{Pins: []config.Pin{{Pin: 1}}}, true))

	deadline := time.After(2 * time.Second)
	for !sim.Claim(2) {
		select {
		case <-deadline:
			t.Fatal("dropped pin was never released")
		case <-time.After(10 * time.Millisecond):
		}
	}
	sim.Release(2)
}

func TestService_ProvidersQuery(t *testing.T) {
	cli, _, reg := startService(t)

	stateSub := cli.Subscribe(bus.Topic{"hal", "state"})
	waitState(t, stateSub, "idle")
	stateSub.Unsubscribe()

	if err := reg.Add(DriverRecord{
		Type: types.ControllerGPIO, Name: "native", Author: "vendor",
		Version: "2.1", Impl: NewHandle(), State: NewHandle(),
	}); err != nil {
		t.Fatal(err)
	}
	reg.SetDefaultName(types.ControllerGPIO, "native")

	m := request(t, cli, bus.Topic{"hal", "providers", "gpio"}, nil)
	if m["ok"] != true || m["default"] != "native" {
		t.Fatalf("providers reply: %#v", m)
	}
	provs, ok := m["providers"].([]map[string]any)
	if !ok || len(provs) != 1 || provs[0]["name"] != "native" {
		t.Fatalf("providers list: %#v", m["providers"])
	}
}

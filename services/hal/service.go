// services/hal/service.go
package hal

import (
	"context"
	"time"

	"boardhal-go/bus"
	"boardhal-go/errcode"
	"boardhal-go/logging"
	"boardhal-go/services/hal/config"
	"boardhal-go/types"
	"boardhal-go/x/timex"
)

// -----------------------------------------------------------------------------
// Entry point
// -----------------------------------------------------------------------------

// Run starts the bus-facing HAL service. It consumes HALConfig on
// "config/hal", manages the configured pins, answers control requests on
// "hal/pin/<n>/control/<method>" and republishes edge events. It blocks
// until ctx is cancelled.
func Run(ctx context.Context, conn *bus.Connection, log *logging.Logger, reg *Registry) {
	s := &service{
		conn:   conn,
		log:    log,
		reg:    reg,
		pins:   map[int]*Pin{},
		watch:  map[int]int{},
		events: make(chan pinEvent, 32),
	}
	s.loop(ctx)
}

type pinEvent struct {
	pin  int
	edge types.Edge
	v    types.Value
}

type service struct {
	conn *bus.Connection
	log  *logging.Logger
	reg  *Registry

	gpio   *GPIO
	pins   map[int]*Pin
	watch  map[int]int // pin -> subscription id
	events chan pinEvent
}

// -----------------------------------------------------------------------------
// Main loop
// -----------------------------------------------------------------------------

func (s *service) loop(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "hal"})
	ctrlSub := s.conn.Subscribe(bus.Topic{"hal", "pin", bus.WildOne, "control", bus.WildOne})
	provSub := s.conn.Subscribe(bus.Topic{"hal", "providers", bus.WildOne})
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)
	defer s.conn.Unsubscribe(provSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.teardown()
			s.publishState("stopped", "context_cancelled", nil)
			return

		case msg := <-cfgSub.Channel():
			var cfg config.HALConfig
			if err := decodeJSON(msg.Payload, &cfg); err != nil {
				s.log.Warn("config decode failed", "error", err)
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			if err := cfg.Validate(); err != nil {
				s.log.Warn("config invalid", "error", err)
				s.publishState("error", "config_invalid", err)
				continue
			}
			if err := s.applyConfig(ctx, &cfg); err != nil {
				s.log.Warn("apply config failed", "error", err)
				s.publishState("error", "apply_config_failed", err)
				continue
			}
			s.publishState("ready", "configured", nil)

		case msg := <-ctrlSub.Channel():
			s.handleControl(msg)

		case msg := <-provSub.Channel():
			s.handleProviders(msg)

		case ev := <-s.events:
			s.publishEvent(ev)
		}
	}
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

func (s *service) applyConfig(ctx context.Context, cfg *config.HALConfig) error {
	for _, d := range cfg.Defaults {
		t, _ := types.ParseControllerType(d.Controller)
		s.reg.SetDefaultName(t, d.Name)
	}

	if s.gpio == nil {
		g, ok := DefaultGPIO(ctx, s.reg)
		if !ok {
			return errcode.New(errcode.NotFound, "applyConfig", "no default gpio provider")
		}
		s.gpio = g
	}

	seen := map[int]struct{}{}
	for i := range cfg.Pins {
		pc := &cfg.Pins[i]
		seen[pc.Pin] = struct{}{}

		// Simple idempotence: an already-open pin keeps its state.
		if _, exists := s.pins[pc.Pin]; exists {
			continue
		}
		if err := s.openPin(pc); err != nil {
			s.log.Warn("pin open failed", "pin", pc.Pin, "code", string(errcode.Of(err)))
			continue
		}
	}

	// Tidy-up: close pins not in config.
	for n, p := range s.pins {
		if _, ok := seen[n]; ok {
			continue
		}
		_ = p.Close()
		delete(s.pins, n)
		delete(s.watch, n)
		s.pubRet(pinTopic(n, "info"), nil)
		s.pubRet(pinTopic(n, "state"), nil)
		s.log.Info("pin closed", "pin", n)
	}
	return nil
}

func (s *service) openPin(pc *config.Pin) error {
	p, err := s.gpio.OpenPin(pc.Pin, pc.SharingMode())
	if err != nil {
		return err
	}

	mode, _ := types.ParseDriveMode(pc.Mode)
	if mode != types.Input {
		if err := p.SetDriveMode(mode); err != nil {
			_ = p.Close()
			return err
		}
	}
	if pc.Initial != nil && mode.IsOutput() {
		v := types.Low
		if *pc.Initial {
			v = types.High
		}
		if err := p.Write(v); err != nil {
			_ = p.Close()
			return err
		}
	}
	if pc.DebounceMS > 0 {
		_ = p.SetDebounce(msToDuration(pc.DebounceMS))
	}

	if pc.Watch {
		n := pc.Pin
		id, err := p.Subscribe(func(edge types.Edge, v types.Value) {
			s.events <- pinEvent{pin: n, edge: edge, v: v}
		})
		if err != nil {
			_ = p.Close()
			return err
		}
		s.watch[n] = id
	}

	s.pins[pc.Pin] = p
	s.pubRet(pinTopic(pc.Pin, "info"), map[string]any{
		"pin":         pc.Pin,
		"mode":        p.DriveMode().String(),
		"sharing":     p.SharingMode().String(),
		"debounce_ms": pc.DebounceMS,
		"watch":       pc.Watch,
	})
	s.log.Info("pin opened", "pin", pc.Pin, "mode", p.DriveMode().String())
	return nil
}

// teardown closes every live pin on shutdown.
func (s *service) teardown() {
	for n, p := range s.pins {
		_ = p.Close()
		delete(s.pins, n)
	}
}

// -----------------------------------------------------------------------------
// Control surface
// -----------------------------------------------------------------------------

func (s *service) handleControl(msg *bus.Message) {
	// hal/pin/<n:int>/control/<method>
	if len(msg.Topic) < 5 {
		return
	}
	n, ok := asInt(msg.Topic[2])
	if !ok {
		s.replyErr(msg, string(errcode.NotFound))
		return
	}
	p, ok := s.pins[n]
	if !ok {
		s.replyErr(msg, string(errcode.NotFound))
		return
	}
	method, _ := msg.Topic[4].(string)

	switch method {
	case "read":
		v, err := p.Read()
		if err != nil {
			s.replyErr(msg, string(errcode.Of(err)))
			return
		}
		s.replyOK(msg, map[string]any{"value": v.Int()})

	case "write":
		v := types.Low
		if wantBool(msg.Payload, "value") {
			v = types.High
		}
		if err := p.Write(v); err != nil {
			s.replyErr(msg, string(errcode.Of(err)))
			return
		}
		s.replyOK(msg, nil)

	case "set_mode":
		var body struct {
			Mode string `json:"mode"`
		}
		if err := decodeJSON(msg.Payload, &body); err != nil {
			s.replyErr(msg, string(errcode.Error))
			return
		}
		mode, ok := types.ParseDriveMode(body.Mode)
		if !ok {
			s.replyErr(msg, string(errcode.UnsupportedDriveMode))
			return
		}
		if err := p.SetDriveMode(mode); err != nil {
			s.replyErr(msg, string(errcode.Of(err)))
			return
		}
		s.replyOK(msg, map[string]any{"mode": mode.String()})

	case "set_debounce":
		var body struct {
			MS int `json:"debounce_ms"`
		}
		if err := decodeJSON(msg.Payload, &body); err != nil || body.MS < 0 {
			s.replyErr(msg, string(errcode.Error))
			return
		}
		if err := p.SetDebounce(msToDuration(body.MS)); err != nil {
			s.replyErr(msg, string(errcode.Of(err)))
			return
		}
		s.replyOK(msg, map[string]any{"debounce_ms": body.MS})

	default:
		s.replyErr(msg, string(errcode.Error))
	}
}

// handleProviders answers "hal/providers/<controller>" with the registered
// records for that type.
func (s *service) handleProviders(msg *bus.Message) {
	if len(msg.Topic) < 3 {
		return
	}
	name, _ := msg.Topic[2].(string)
	t, ok := types.ParseControllerType(name)
	if !ok {
		s.replyErr(msg, string(errcode.NotFound))
		return
	}
	recs := s.reg.FindByType(t)
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		out = append(out, map[string]any{
			"name":    r.Name,
			"author":  r.Author,
			"version": r.Version,
		})
	}
	defName, _ := s.reg.DefaultName(t)
	s.replyOK(msg, map[string]any{"providers": out, "default": defName})
}

// -----------------------------------------------------------------------------
// Events and helpers
// -----------------------------------------------------------------------------

func (s *service) publishEvent(ev pinEvent) {
	ts := timex.NowMs()

	// Event (non-retained)
	s.conn.Publish(s.conn.NewMessage(
		pinTopic(ev.pin, "event"),
		map[string]any{
			"edge":  ev.edge.String(),
			"value": ev.v.Int(),
			"ts_ms": ts,
		},
		false,
	))
	// State (retained)
	s.pubRet(pinTopic(ev.pin, "state"),
		map[string]any{"value": ev.v.Int(), "ts_ms": ts})
}

func (s *service) publishState(level, status string, err error) {
	payload := map[string]any{"level": level, "status": status, "ts_ms": timex.NowMs()}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(bus.Topic{"hal", "state"}, payload, true))
}

func (s *service) replyOK(req *bus.Message, extra map[string]any) {
	if len(req.ReplyTo) == 0 {
		return
	}
	m := map[string]any{"ok": true}
	for k, v := range extra {
		m[k] = v
	}
	s.conn.Reply(req, m, false)
}

func (s *service) replyErr(req *bus.Message, e string) {
	if len(req.ReplyTo) == 0 {
		return
	}
	s.conn.Reply(req, map[string]any{"ok": false, "error": e}, false)
}

func pinTopic(n int, rest ...bus.Token) bus.Topic {
	base := bus.Topic{"hal", "pin", n}
	return append(base, rest...)
}

func (s *service) pubRet(t bus.Topic, p any) {
	s.conn.Publish(s.conn.NewMessage(t, p, true))
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

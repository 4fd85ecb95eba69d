package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"boardhal-go/bus"
	"boardhal-go/drivers/serialgpio"
	"boardhal-go/drivers/simgpio"
	"boardhal-go/logging"
	"boardhal-go/services/hal"
	"boardhal-go/services/hal/config"
	"boardhal-go/types"
)

const version = "0.1.0"

func main() {
	cfgPath := flag.String("config", "hal.yaml", "path to HAL config file")
	flag.Parse()

	cfg, err := config.Load(config.Path(*cfgPath))
	if err != nil {
		logging.New(logging.Options{}, "haldemo", version).Error("config load failed", "error", err)
		os.Exit(1)
	}

	log := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}, "haldemo", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := hal.Providers

	// The simulated backend is always available as the lazy default.
	reg.SetDefaultCreator(types.ControllerGPIO, func() any {
		return simgpio.New(64)
	})

	// A serial bridge, when configured, registers as a named record and as
	// the preferred default.
	if cfg.Serial != nil {
		drv, err := serialgpio.Open(cfg.Serial.Device, cfg.Serial.Baud)
		if err != nil {
			log.Error("serial bridge open failed", "device", cfg.Serial.Device, "error", err)
			os.Exit(1)
		}
		defer drv.Close()

		rec := hal.DriverRecord{
			Type:    types.ControllerGPIO,
			Name:    "serial-bridge",
			Author:  "boardhal",
			Version: version,
			Impl:    hal.NewHandle(),
			State:   hal.NewHandle(),
		}
		if err := reg.Add(rec); err != nil {
			log.Error("register serial bridge failed", "error", err)
			os.Exit(1)
		}
		reg.SetDefaultName(types.ControllerGPIO, rec.Name)
		reg.SetDefaultCreator(types.ControllerGPIO, func() any { return drv })
		log.Info("serial bridge registered", "device", cfg.Serial.Device)
	}

	b := bus.NewBus(16)
	halConn := b.NewConnection("hal")
	mainConn := b.NewConnection("main")

	done := make(chan struct{})
	go func() {
		defer close(done)
		hal.Run(ctx, halConn, log, reg)
	}()

	// Feed the loaded config to the service the same way a config service
	// would publish it.
	mainConn.Publish(mainConn.NewMessage(bus.Topic{"config", "hal"}, cfg, true))
	log.Info("hal service started", "pins", len(cfg.Pins))

	<-ctx.Done()
	<-done
	log.Info("shutdown complete")
}

// Command eventbridged wires the event-bridge engine to whatever backends
// the operator names on the command line, logging decoded events to stderr.
// It is a thin process shell: flag/env plumbing around the bridge package,
// which owns all of the actual gesture-decoding logic.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Darkglass-Electronics/event-bridge/bridge"
)

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// backendSpec is one -input/-output flag value: "kind:id:index".
type backendSpec struct {
	kind  string
	id    string
	index int
}

func parseBackendSpec(s string) (backendSpec, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return backendSpec{}, fmt.Errorf("expected kind:id:index, got %q", s)
	}
	index, err := strconv.Atoi(parts[2])
	if err != nil {
		return backendSpec{}, fmt.Errorf("bad index in %q: %w", s, err)
	}
	return backendSpec{kind: parts[0], id: parts[1], index: index}, nil
}

func inputKind(s string) (bridge.BackendKind, bool) {
	switch s {
	case "libinput":
		return bridge.KindLibinput, true
	case "serial":
		return bridge.KindSerial, true
	case "gpio":
		return bridge.KindGpioInput, true
	default:
		return 0, false
	}
}

func outputKind(s string) (bridge.BackendKind, bool) {
	switch s {
	case "gpio":
		return bridge.KindGpioOutput, true
	case "led":
		return bridge.KindSysfsLed, true
	default:
		return 0, false
	}
}

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	var inputs, outputs stringList
	flag.Var(&inputs, "input", "backend:id:index, repeatable (e.g. libinput:/dev/input/event2:0)")
	flag.Var(&outputs, "output", "backend:id:index, repeatable (e.g. led:panel:0)")
	pollHz := flag.Int("poll-hz", getenvIntDefault("POLL_HZ", 20), "poll rate in Hz (default: 50ms interval)")
	debug := flag.Bool("debug", getenvDefault("DEBUG", "") != "", "enable debug logging")
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: logger init: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg := bridge.DefaultConfig()
	cfg.LongPressMS = uint32(getenvIntDefault("LONG_PRESS_MS", int(cfg.LongPressMS)))
	cfg.TapHysteresisMS = uint32(getenvIntDefault("TAP_TEMPO_HYSTERESIS_MS", int(cfg.TapHysteresisMS)))
	cfg.TapTimeoutMS = uint32(getenvIntDefault("TAP_TEMPO_TIMEOUT_MS", int(cfg.TapTimeoutMS)))
	cfg.TapTimeoutOverflowMS = uint32(getenvIntDefault("TAP_TEMPO_TIMEOUT_OVERFLOW_MS", int(cfg.TapTimeoutOverflowMS)))
	cfg.NumEncoders = getenvIntDefault("NUM_ENCODERS", cfg.NumEncoders)
	cfg.NumFootswitches = getenvIntDefault("NUM_FOOTSWITCHES", cfg.NumFootswitches)
	cfg.NumLeds = getenvIntDefault("NUM_LEDS", cfg.NumLeds)

	eb := bridge.New(cfg, sugar)
	defer eb.Close()

	for _, raw := range inputs {
		spec, err := parseBackendSpec(raw)
		if err != nil {
			sugar.Fatalw("bad -input", "value", raw, "error", err)
		}
		kind, ok := inputKind(spec.kind)
		if !ok {
			sugar.Fatalw("unknown input backend kind", "kind", spec.kind)
		}
		if !eb.AddInput(kind, spec.id, uint8(spec.index)) {
			sugar.Fatalw("add_input failed", "spec", raw, "last_error", eb.LastError())
		}
	}
	for _, raw := range outputs {
		spec, err := parseBackendSpec(raw)
		if err != nil {
			sugar.Fatalw("bad -output", "value", raw, "error", err)
		}
		kind, ok := outputKind(spec.kind)
		if !ok {
			sugar.Fatalw("unknown output backend kind", "kind", spec.kind)
		}
		if !eb.AddOutput(kind, spec.id, uint8(spec.index)) {
			sugar.Fatalw("add_output failed", "spec", raw, "last_error", eb.LastError())
		}
	}

	eb.Clear()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	period := time.Second / time.Duration(max(1, *pollHz))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			sugar.Info("shutting down")
			return
		case <-ticker.C:
			eb.Poll(func(ev bridge.Event) {
				sugar.Infow("event", "type", ev.Type.String(), "state", ev.State.String(), "index", ev.Index, "value", ev.Value)
			})
		}
	}
}

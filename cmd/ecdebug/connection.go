// cmd/ecdebug/connection.go
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tamzrod/ecdebug/internal/config"
	"github.com/tamzrod/ecdebug/internal/device"
	"github.com/tamzrod/ecdebug/internal/work"
)

// flagDeviceID names the device built from connection flags.
const flagDeviceID = "cros_ec"

// loadConfig returns a validated, normalized configuration, either from
// --config or from the connection flags.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config

	if configPath != "" {
		c, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	} else {
		dc, err := deviceFromFlags()
		if err != nil {
			return nil, err
		}
		cfg = &config.Config{ECDebug: config.ECDebugConfig{
			Devices: []config.DeviceConfig{dc},
		}}
	}

	if logLevel != "" {
		cfg.ECDebug.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.ECDebug.Log.Format = logFormat
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)

	if deviceID != "" {
		for _, d := range cfg.ECDebug.Devices {
			if d.ID == deviceID {
				cfg.ECDebug.Devices = []config.DeviceConfig{d}
				return cfg, nil
			}
		}
		return nil, fmt.Errorf("device %q not in configuration", deviceID)
	}
	return cfg, nil
}

// deviceFromFlags maps the connection flags onto one device entry.
// At most one of --url, --tcp and --port may be given.
func deviceFromFlags() (config.DeviceConfig, error) {
	set := 0
	for _, s := range []string{wsURL, tcpEndpoint, portName} {
		if s != "" {
			set++
		}
	}
	if set > 1 {
		return config.DeviceConfig{}, fmt.Errorf("--url, --tcp and --port are mutually exclusive")
	}

	t := config.TransportConfig{
		Baud:      baudRate,
		TimeoutMs: timeoutMs,
	}
	switch {
	case useModbus:
		if wsURL != "" {
			return config.DeviceConfig{}, fmt.Errorf("--modbus needs --tcp or --port")
		}
		t.Kind = config.KindModbus
		t.Endpoint = tcpEndpoint
		t.Path = portName
		t.UnitID = unitID
	case wsURL != "":
		t.Kind = config.KindWebSocket
		t.Endpoint = wsURL
		t.Username = wsUsername
		t.NoSSLVerify = wsNoSSLVerify
	case tcpEndpoint != "":
		t.Kind = config.KindTCP
		t.Endpoint = tcpEndpoint
	case portName != "":
		t.Kind = config.KindSerial
		t.Path = portName
	default:
		t.Kind = config.KindChardev
		t.Path = chardevPath
	}

	id := flagDeviceID
	if deviceID != "" {
		id = deviceID
	}
	return config.DeviceConfig{
		ID:        id,
		Transport: t,
		CmdOffset: cmdOffset,
	}, nil
}

// newLogger builds the process logger. Logs go to stderr so stdout
// stays clean for command output.
func newLogger(lc config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// session is everything a command needs: attached devices, the shared
// work pool and the logger.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	pool    *work.Pool
	devices []*device.Device
}

// openSession loads configuration and attaches every selected device.
// mutate, if set, adjusts device entries before they are built.
func openSession(mutate func(*config.DeviceConfig)) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		for i := range cfg.ECDebug.Devices {
			mutate(&cfg.ECDebug.Devices[i])
		}
	}

	s := &session{
		cfg:    cfg,
		logger: newLogger(cfg.ECDebug.Log),
		pool:   work.NewPool(cfg.ECDebug.Workers),
	}

	for _, dc := range cfg.ECDebug.Devices {
		d, err := device.Build(dc, s.pool, s.logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("device build failed (device=%s): %w", dc.ID, err)
		}
		s.devices = append(s.devices, d)
	}
	return s, nil
}

// first returns the device single-device commands operate on.
func (s *session) first() *device.Device {
	return s.devices[0]
}

func (s *session) Close() {
	for _, d := range s.devices {
		if err := d.Detach(); err != nil {
			s.logger.Warn("detach failed", "device", d.ID(), "error", err)
		}
	}
	s.pool.Close()
}

// quietConsole keeps one-shot commands from starting a console pipeline
// they will never read.
func quietConsole(dc *config.DeviceConfig) {
	off := false
	dc.Console.Enabled = &off
}

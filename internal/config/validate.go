// internal/config/validate.go
package config

import (
	"fmt"
	"strings"
)

// Buffer shift bounds accepted in configuration (0 selects the default).
const (
	minBufferShift = 4
	maxBufferShift = 24
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	c := &cfg.ECDebug

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: expected debug, info, warn or error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q: expected text or json", c.Log.Format)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}

	if len(c.Devices) == 0 {
		return fmt.Errorf("at least one device is required")
	}

	seen := make(map[string]struct{}, len(c.Devices))

	for _, d := range c.Devices {
		// ------------------------------------------------------------
		// IDENTITY
		// ------------------------------------------------------------

		if d.ID == "" {
			return fmt.Errorf("device id is required")
		}
		if strings.ContainsAny(d.ID, "/\x00") || d.ID == "." || d.ID == ".." {
			return fmt.Errorf("device %q: id must be usable as a directory name", d.ID)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("device %q: duplicate id", d.ID)
		}
		seen[d.ID] = struct{}{}

		// ------------------------------------------------------------
		// TRANSPORT
		// ------------------------------------------------------------

		if err := validateTransport(d.Transport); err != nil {
			return fmt.Errorf("device %q: %w", d.ID, err)
		}

		// ------------------------------------------------------------
		// CONSOLE
		// ------------------------------------------------------------

		if s := d.Console.BufferShift; s != 0 && (s < minBufferShift || s > maxBufferShift) {
			return fmt.Errorf("device %q: console.buffer_shift %d outside %d..%d",
				d.ID, s, minBufferShift, maxBufferShift)
		}
		if d.Console.PollIntervalMs < 0 {
			return fmt.Errorf("device %q: console.poll_interval_ms must be >= 0", d.ID)
		}
	}

	return nil
}

func validateTransport(t TransportConfig) error {
	if t.TimeoutMs < 0 {
		return fmt.Errorf("transport.timeout_ms must be >= 0")
	}
	if t.Baud < 0 {
		return fmt.Errorf("transport.baud must be >= 0")
	}
	if t.MaxResponse < 0 {
		return fmt.Errorf("transport.max_response must be >= 0")
	}

	switch t.Kind {
	case KindChardev:
		// path optional, defaults to /dev/cros_ec
	case KindSerial:
		if t.Path == "" {
			return fmt.Errorf("serial transport requires path")
		}
	case KindTCP:
		if t.Endpoint == "" {
			return fmt.Errorf("tcp transport requires endpoint")
		}
	case KindWebSocket:
		if !strings.HasPrefix(t.Endpoint, "ws://") && !strings.HasPrefix(t.Endpoint, "wss://") {
			return fmt.Errorf("websocket transport requires a ws:// or wss:// endpoint")
		}
	case KindModbus:
		if t.Endpoint == "" && t.Path == "" {
			return fmt.Errorf("modbus transport requires endpoint (TCP) or path (RTU)")
		}
		if t.Endpoint != "" && t.Path != "" {
			return fmt.Errorf("modbus transport takes endpoint or path, not both")
		}
	case "":
		return fmt.Errorf("transport.kind is required")
	default:
		return fmt.Errorf("transport.kind %q not supported", t.Kind)
	}
	return nil
}

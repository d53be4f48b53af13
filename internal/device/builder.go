// internal/device/builder.go
package device

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	cfg "github.com/tamzrod/ecdebug/internal/config"
	"github.com/tamzrod/ecdebug/internal/ec"
	"github.com/tamzrod/ecdebug/internal/transport/chardev"
	"github.com/tamzrod/ecdebug/internal/transport/modbus"
	"github.com/tamzrod/ecdebug/internal/transport/packet"
	"github.com/tamzrod/ecdebug/internal/work"
)

// Build opens the configured transport and attaches the device.
// Opening the transport is one attempt; failure is returned to the caller.
func Build(dc cfg.DeviceConfig, pool *work.Pool, logger *slog.Logger) (*Device, error) {
	tr, err := OpenTransport(dc.Transport, logger)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", dc.ID, err)
	}

	d, err := Attach(RuntimeConfig(dc), tr, pool, logger)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}
	return d, nil
}

// RuntimeConfig maps a validated, normalized device config.
func RuntimeConfig(dc cfg.DeviceConfig) Config {
	return Config{
		ID:               dc.ID,
		CommandOffset:    dc.CmdOffset,
		ConsoleEnabled:   dc.Console.ConsoleEnabled(),
		BufferShift:      dc.Console.BufferShift,
		PollInterval:     time.Duration(dc.Console.PollIntervalMs) * time.Millisecond,
		SuspendTimeoutMs: dc.SuspendTimeoutMs,
	}
}

// OpenTransport connects to an EC the way tc describes.
func OpenTransport(tc cfg.TransportConfig, logger *slog.Logger) (ec.Transport, error) {
	timeout := time.Duration(tc.TimeoutMs) * time.Millisecond

	switch tc.Kind {
	case cfg.KindChardev:
		t, err := chardev.Open(tc.Path, tc.MaxResponse)
		if err != nil {
			return nil, err
		}
		return t, nil

	case cfg.KindModbus:
		t, err := modbus.New(modbus.Config{
			Endpoint: tc.Endpoint,
			Path:     tc.Path,
			Baud:     tc.Baud,
			UnitID:   tc.UnitID,
			Timeout:  timeout,
		}, tc.MaxResponse)
		if err != nil {
			return nil, err
		}
		return t, nil

	case cfg.KindSerial:
		conn, err := packet.OpenSerial(tc.Path, tc.Baud, timeout)
		if err != nil {
			return nil, err
		}
		return framed(conn, tc, timeout, logger)

	case cfg.KindTCP:
		conn, err := packet.DialTCP(tc.Endpoint, timeout)
		if err != nil {
			return nil, err
		}
		return framed(conn, tc, timeout, logger)

	case cfg.KindWebSocket:
		password := ""
		if tc.Username != "" {
			p, err := packet.GetPassword()
			if err != nil {
				return nil, err
			}
			password = p
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		conn, err := packet.DialWebSocket(ctx, tc.Endpoint, tc.Username, password, tc.NoSSLVerify)
		if err != nil {
			return nil, err
		}
		return framed(conn, tc, timeout, logger)

	default:
		return nil, fmt.Errorf("unsupported transport kind %q", tc.Kind)
	}
}

// framed wraps a byte stream in host command packets and negotiates
// limits. A failed negotiation keeps the defaults.
func framed(conn io.ReadWriteCloser, tc cfg.TransportConfig, timeout time.Duration, logger *slog.Logger) (ec.Transport, error) {
	t, err := packet.New(conn, packet.WithTimeout(timeout))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := t.Negotiate(tc.MaxResponse); err != nil && logger != nil {
		logger.Warn("protocol info unavailable, using default limits",
			"transport", tc.Kind,
			"error", err,
		)
	}
	return t, nil
}

// internal/device/device.go

// Package device ties one EC to its optional features: the console log
// pipeline, panic capture, port status, uptime and the suspend/resume
// hooks.
package device

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tamzrod/ecdebug/internal/console"
	"github.com/tamzrod/ecdebug/internal/ec"
	"github.com/tamzrod/ecdebug/internal/snapshot"
	"github.com/tamzrod/ecdebug/internal/status"
	"github.com/tamzrod/ecdebug/internal/work"
)

// ErrUnsupported is returned for features the EC did not advertise.
var ErrUnsupported = errors.New("device: not supported by this EC")

// PanicNotifier is implemented by transports that can report an EC panic.
type PanicNotifier interface {
	OnPanic(fn func()) (unregister func())
}

// Config is the minimal runtime config a device needs.
type Config struct {
	ID               string
	CommandOffset    uint16
	ConsoleEnabled   bool
	BufferShift      uint
	PollInterval     time.Duration
	SuspendTimeoutMs uint16
}

// Features are decided once at attach and never change.
type Features struct {
	ConsoleReadV1 bool
	Uptime        bool
	PanicInfo     bool
}

// Endpoint names one exposed value or stream.
type Endpoint string

const (
	EndpointConsoleLog       Endpoint = "console_log"
	EndpointPanicInfo        Endpoint = "panicinfo"
	EndpointPDInfo           Endpoint = "pdinfo"
	EndpointUptime           Endpoint = "uptime"
	EndpointLastResumeResult Endpoint = "last_resume_result"
	EndpointSuspendTimeout   Endpoint = "suspend_timeout_ms"
)

// Device is an attached EC.
type Device struct {
	id       string
	ch       *ec.Channel
	host     *ec.Channel // no sub-device offset; snapshot queries
	logger   *slog.Logger
	features Features
	console  *console.Pipeline
	panic    []byte

	unregister func()

	lastResumeResult atomic.Uint32
	suspendTimeoutMs atomic.Uint32

	mu        sync.Mutex
	suspended bool
	detached  bool
	tracker   *status.Tracker
}

// Attach probes the EC behind tr and starts the features it supports.
// Optional features that fail to set up are skipped and logged; only a
// missing transport or identity is fatal. The device owns tr from here on.
func Attach(cfg Config, tr ec.Transport, pool *work.Pool, logger *slog.Logger) (*Device, error) {
	if tr == nil {
		return nil, errors.New("device: transport required")
	}
	if cfg.ID == "" {
		return nil, errors.New("device: id required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("device", cfg.ID)

	ch := ec.NewChannel(tr,
		ec.WithCommandOffset(cfg.CommandOffset),
		ec.WithLogger(logger),
	)
	d := &Device{
		id:      cfg.ID,
		ch:      ch,
		host:    ch.Direct(),
		logger:  logger,
		tracker: status.NewTracker(),
	}
	d.suspendTimeoutMs.Store(uint32(cfg.SuspendTimeoutMs))

	// ------------------------------------------------------------
	// PANIC INFO (captured once, before anything else talks to the EC)
	// ------------------------------------------------------------

	info, err := snapshot.PanicInfo(d.host)
	switch {
	case err != nil:
		logger.Debug("panic info unavailable", "error", err)
	case info != nil:
		d.panic = info
		d.features.PanicInfo = true
		logger.Warn("EC reports a previous panic", "bytes", len(info))
	}

	// ------------------------------------------------------------
	// CONSOLE LOG
	// ------------------------------------------------------------

	if cfg.ConsoleEnabled && ch.Supports(ec.CmdConsoleRead, 1) {
		if pool == nil {
			logger.Warn("console log skipped", "error", "no work pool")
		} else if p, err := console.New(ch, pool, consoleOptions(cfg, logger)...); err != nil {
			logger.Warn("console log skipped", "error", err)
		} else {
			d.console = p
			d.features.ConsoleReadV1 = true
			p.Start()
		}
	}

	// ------------------------------------------------------------
	// UPTIME
	// ------------------------------------------------------------

	d.features.Uptime = snapshot.UptimeSupported(d.host)

	// ------------------------------------------------------------
	// PANIC NOTIFICATIONS
	// ------------------------------------------------------------

	if pn, ok := tr.(PanicNotifier); ok {
		d.unregister = pn.OnPanic(d.HandlePanic)
	}

	logger.Info("device attached",
		"console_log", d.features.ConsoleReadV1,
		"uptime", d.features.Uptime,
		"panic_info", d.features.PanicInfo,
		"max_response", ch.MaxResponse(),
	)
	return d, nil
}

func consoleOptions(cfg Config, logger *slog.Logger) []console.Option {
	opts := []console.Option{console.WithLogger(logger)}
	if cfg.BufferShift != 0 {
		opts = append(opts, console.WithBufferShift(cfg.BufferShift))
	}
	if cfg.PollInterval > 0 {
		opts = append(opts, console.WithPollInterval(cfg.PollInterval))
	}
	return opts
}

func (d *Device) ID() string { return d.id }

func (d *Device) Features() Features { return d.features }

// Channel exposes the command channel for ad-hoc queries.
func (d *Device) Channel() *ec.Channel { return d.ch }

// Console returns the console pipeline, if the EC supports it.
func (d *Device) Console() (*console.Pipeline, bool) {
	return d.console, d.console != nil
}

// PanicInfo returns the panic record captured at attach.
func (d *Device) PanicInfo() ([]byte, bool) {
	return d.panic, d.features.PanicInfo
}

// PortStatus renders the USB-PD port lines.
func (d *Device) PortStatus() string {
	return snapshot.PortStatus(d.host)
}

// Ports returns the decoded USB-PD ports.
func (d *Device) Ports() []snapshot.Port {
	return snapshot.Ports(d.host)
}

// Uptime renders milliseconds since EC boot.
func (d *Device) Uptime() (string, error) {
	if !d.features.Uptime {
		return "", ErrUnsupported
	}
	return snapshot.Uptime(d.host)
}

// UptimeInfo returns the full uptime record.
func (d *Device) UptimeInfo() (ec.UptimeInfo, error) {
	if !d.features.Uptime {
		return ec.UptimeInfo{}, ErrUnsupported
	}
	return snapshot.UptimeInfo(d.host)
}

// ------------------------------------------------------------
// Lifecycle
// ------------------------------------------------------------

// HandlePanic drains the console right away so the last lines before
// the EC resets are kept. Ignored while suspended.
func (d *Device) HandlePanic() {
	d.logger.Warn("EC panic notification")
	if d.console != nil {
		d.console.ForceDrain()
	}
}

// Suspend stops console polling until Resume.
func (d *Device) Suspend() {
	d.mu.Lock()
	if d.suspended || d.detached {
		d.mu.Unlock()
		return
	}
	d.suspended = true
	d.mu.Unlock()

	if d.console != nil {
		d.console.Suspend()
	}
	d.logger.Debug("device suspended")
}

// Resume restarts console polling with an immediate drain.
func (d *Device) Resume() {
	d.mu.Lock()
	if !d.suspended || d.detached {
		d.mu.Unlock()
		return
	}
	d.suspended = false
	d.mu.Unlock()

	if d.console != nil {
		d.console.Resume()
	}
	d.logger.Debug("device resumed")
}

func (d *Device) Suspended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suspended
}

func (d *Device) LastResumeResult() uint32 { return d.lastResumeResult.Load() }

// SetLastResumeResult records the EC's report of the last resume. It is
// read-only to consumers.
func (d *Device) SetLastResumeResult(v uint32) { d.lastResumeResult.Store(v) }

func (d *Device) SuspendTimeoutMs() uint16 { return uint16(d.suspendTimeoutMs.Load()) }

func (d *Device) SetSuspendTimeoutMs(v uint16) { d.suspendTimeoutMs.Store(uint32(v)) }

// Endpoints lists what this device exposes, in a stable order.
func (d *Device) Endpoints() []Endpoint {
	var out []Endpoint
	if d.console != nil {
		out = append(out, EndpointConsoleLog)
	}
	if d.features.PanicInfo {
		out = append(out, EndpointPanicInfo)
	}
	out = append(out, EndpointPDInfo)
	if d.features.Uptime {
		out = append(out, EndpointUptime)
	}
	return append(out, EndpointLastResumeResult, EndpointSuspendTimeout)
}

// Detach unregisters the panic hook, stops the console and closes the
// transport. Safe to call more than once.
func (d *Device) Detach() error {
	d.mu.Lock()
	if d.detached {
		d.mu.Unlock()
		return nil
	}
	d.detached = true
	d.mu.Unlock()

	if d.unregister != nil {
		d.unregister()
	}
	if d.console != nil {
		d.console.Close()
	}
	if err := d.ch.Close(); err != nil {
		return fmt.Errorf("device %s: close transport: %w", d.id, err)
	}
	d.logger.Info("device detached")
	return nil
}

// internal/ec/ectest/device.go

// Package ectest provides an in-memory EC for tests. It implements
// ec.Transport and a panic notification source.
package ectest

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/tamzrod/ecdebug/internal/ec"
)

// Handler answers one command. req is a copy of the request payload and
// resp is the response buffer of length InSize.
type Handler func(version uint32, req, resp []byte) (n int, result ec.Result, err error)

// Device is a scripted EC.
type Device struct {
	mu       sync.Mutex
	maxReq   int
	maxResp  int
	handlers map[uint32]Handler
	calls    map[uint32]int
	closed   bool

	hooks  map[int]func()
	nextID int
}

// New returns an EC that knows no commands. Unknown commands answer
// "invalid command".
func New() *Device {
	return &Device{
		maxReq:   ec.DefaultMaxRequest,
		maxResp:  ec.DefaultMaxResponse,
		handlers: make(map[uint32]Handler),
		calls:    make(map[uint32]int),
		hooks:    make(map[int]func()),
	}
}

// SetLimits overrides the payload limits.
func (d *Device) SetLimits(maxReq, maxResp int) {
	d.mu.Lock()
	d.maxReq, d.maxResp = maxReq, maxResp
	d.mu.Unlock()
}

// Handle installs h for the wire opcode cmd.
func (d *Device) Handle(cmd uint16, h Handler) {
	d.mu.Lock()
	d.handlers[uint32(cmd)] = h
	d.mu.Unlock()
}

// Calls returns how many times the wire opcode cmd was exchanged.
func (d *Device) Calls(cmd uint16) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[uint32(cmd)]
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// ---- ec.Transport ----

func (d *Device) Exchange(cmd *ec.Command) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, errors.New("ectest: device closed")
	}
	d.calls[cmd.Command]++
	h := d.handlers[cmd.Command]
	d.mu.Unlock()

	if h == nil {
		cmd.Result = ec.ResultInvalidCommand
		return 0, nil
	}

	req := append([]byte(nil), cmd.Data[:cmd.OutSize]...)
	resp := cmd.Data[:cmd.InSize]
	clear(resp)

	n, result, err := h(cmd.Version, req, resp)
	if err != nil {
		return 0, err
	}
	cmd.Result = result
	return n, nil
}

func (d *Device) MaxRequest() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxReq
}

func (d *Device) MaxResponse() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxResp
}

func (d *Device) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// ---- panic notifications ----

// OnPanic registers fn to run when the EC reports a panic.
func (d *Device) OnPanic(fn func()) (unregister func()) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.hooks[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.hooks, id)
		d.mu.Unlock()
	}
}

// Panic delivers a panic notification synchronously.
func (d *Device) Panic() {
	d.mu.Lock()
	hooks := make([]func(), 0, len(d.hooks))
	for _, fn := range d.hooks {
		hooks = append(hooks, fn)
	}
	d.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Hooks returns the number of registered panic handlers.
func (d *Device) Hooks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.hooks)
}

// ------------------------------------------------------------
// Handler helpers
// ------------------------------------------------------------

// Respond answers success with data.
func Respond(data []byte) Handler {
	return func(_ uint32, _, resp []byte) (int, ec.Result, error) {
		return copy(resp, data), ec.ResultSuccess, nil
	}
}

// Fail answers with a non-success EC status.
func Fail(result ec.Result) Handler {
	return func(uint32, []byte, []byte) (int, ec.Result, error) {
		return 0, result, nil
	}
}

// Broken fails the exchange at the transport level.
func Broken(err error) Handler {
	return func(uint32, []byte, []byte) (int, ec.Result, error) {
		return 0, 0, err
	}
}

// Versions answers GET_CMD_VERSIONS from a per-opcode mask table.
// Opcodes missing from the table answer "invalid param".
func Versions(masks map[uint16]uint32) Handler {
	return func(_ uint32, req, resp []byte) (int, ec.Result, error) {
		if len(req) < ec.GetCmdVersionsParamsSize || len(resp) < ec.GetCmdVersionsResponseSize {
			return 0, ec.ResultInvalidParam, nil
		}
		mask, ok := masks[binary.LittleEndian.Uint16(req)]
		if !ok {
			return 0, ec.ResultInvalidParam, nil
		}
		binary.LittleEndian.PutUint32(resp, mask)
		return ec.GetCmdVersionsResponseSize, ec.ResultSuccess, nil
	}
}

// internal/transport/modbus/client.go

// Package modbus reaches an EC behind a Modbus gateway. Each host
// command is one FC23 (read/write multiple registers) transaction: the
// request is written to the command window and the response is read back
// from the result window in the same round trip.
package modbus

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/ecdebug/internal/ec"
)

//
// ---- Gateway register map (LOCKED) ----
//
// Command window (written), starting at CommandAddress:
// 0    command
// 1    command version
// 2    outsize (bytes)
// 3    insize (bytes)
// 4+   request payload, 2 bytes per register, big-endian, zero padded
//
// Result window (read), starting at ResultAddress:
// 0    EC result
// 1    response length (bytes)
// 2+   response payload, 2 bytes per register, big-endian
//

const (
	CommandAddress uint16 = 0x0000
	ResultAddress  uint16 = 0x1000

	commandHeaderRegs = 4
	resultHeaderRegs  = 2

	// FC23 quantity limits.
	maxWriteRegs = 0x79
	maxReadRegs  = 0x7D

	// MaxRequest and MaxResponse are the payload limits the register
	// windows allow.
	MaxRequest  = (maxWriteRegs - commandHeaderRegs) * 2
	MaxResponse = (maxReadRegs - resultHeaderRegs) * 2
)

// registerClient is the subset of modbus.Client the gateway needs.
type registerClient interface {
	ReadWriteMultipleRegisters(readAddress, readQuantity, writeAddress, writeQuantity uint16, value []byte) ([]byte, error)
}

type Config struct {
	Endpoint string // host:port for Modbus TCP
	Path     string // serial device for Modbus RTU
	Baud     int
	UnitID   uint8
	Timeout  time.Duration
}

// Transport is a single gateway connection. It serializes transactions.
type Transport struct {
	mu      sync.Mutex
	handler io.Closer
	client  registerClient
	maxResp int
}

// New connects to the gateway. maxResponse > 0 caps the response size.
func New(cfg Config, maxResponse int) (*Transport, error) {
	if cfg.Endpoint == "" && cfg.Path == "" {
		return nil, errors.New("transport modbus: endpoint or path required")
	}

	var handler interface {
		modbus.ClientHandler
		Connect() error
		Close() error
	}

	if cfg.Path != "" {
		h := modbus.NewRTUClientHandler(cfg.Path)
		h.BaudRate = cfg.Baud
		h.DataBits = 8
		h.Parity = "N"
		h.StopBits = 1
		h.SlaveId = cfg.UnitID
		h.Timeout = cfg.Timeout
		handler = h
	} else {
		h := modbus.NewTCPClientHandler(cfg.Endpoint)
		h.SlaveId = cfg.UnitID
		h.Timeout = cfg.Timeout
		handler = h
	}

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("transport modbus: connect %s: %w", target(cfg), err)
	}
	return newTransport(handler, modbus.NewClient(handler), maxResponse), nil
}

func newTransport(handler io.Closer, client registerClient, maxResponse int) *Transport {
	t := &Transport{handler: handler, client: client, maxResp: MaxResponse}
	if maxResponse > 0 && maxResponse < t.maxResp {
		t.maxResp = maxResponse
	}
	return t
}

func target(cfg Config) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	return cfg.Endpoint
}

func (t *Transport) MaxRequest() int  { return MaxRequest }
func (t *Transport) MaxResponse() int { return t.maxResp }

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handler == nil {
		return nil
	}
	return t.handler.Close()
}

// Exchange performs one FC23 transaction.
func (t *Transport) Exchange(cmd *ec.Command) (int, error) {
	if cmd.Command > 0xFFFF || cmd.Version > 0xFFFF {
		return 0, fmt.Errorf("transport modbus: command 0x%x v%d not representable", cmd.Command, cmd.Version)
	}
	if int(cmd.OutSize) > MaxRequest || int(cmd.InSize) > MaxResponse {
		return 0, fmt.Errorf("transport modbus: %w", ec.ErrMessageSize)
	}

	header := []uint16{uint16(cmd.Command), uint16(cmd.Version), uint16(cmd.OutSize), uint16(cmd.InSize)}
	value := append(packRegisters(header), cmd.Data[:cmd.OutSize]...)
	if len(value)%2 != 0 {
		value = append(value, 0)
	}
	writeQty := uint16(len(value) / 2)
	readQty := uint16(resultHeaderRegs + (int(cmd.InSize)+1)/2)

	t.mu.Lock()
	res, err := t.client.ReadWriteMultipleRegisters(ResultAddress, readQty, CommandAddress, writeQty, value)
	t.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("transport modbus: %w", err)
	}

	regs := unpackRegisters(res[:len(res)&^1])
	if len(regs) < resultHeaderRegs {
		return 0, fmt.Errorf("transport modbus: short result window (%d bytes)", len(res))
	}
	n := int(regs[1])
	if n > int(cmd.InSize) || resultHeaderRegs*2+n > len(res) {
		return 0, fmt.Errorf("transport modbus: response length %d does not fit", n)
	}

	copy(cmd.Data, res[resultHeaderRegs*2:resultHeaderRegs*2+n])
	cmd.Result = ec.Result(regs[0])
	return n, nil
}

// Modbus register memory order (BIG-ENDIAN)
func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

func unpackRegisters(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return out
}

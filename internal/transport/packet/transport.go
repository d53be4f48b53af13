// internal/transport/packet/transport.go
package packet

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tamzrod/ecdebug/internal/ec"
)

// deadliner is implemented by streams that support I/O deadlines
// (net.Conn, websocket connections).
type deadliner interface {
	SetDeadline(t time.Time) error
}

// Transport exchanges one framed request and response per command.
// Exchanges are serialized; the stream is never shared.
type Transport struct {
	mu      sync.Mutex
	conn    io.ReadWriteCloser
	timeout time.Duration
	maxReq  int
	maxResp int
}

// Option configures a Transport.
type Option func(*Transport)

// WithTimeout bounds each exchange on streams that support deadlines.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.timeout = d }
}

// WithLimits fixes the payload limits instead of using defaults.
func WithLimits(maxReq, maxResp int) Option {
	return func(t *Transport) {
		if maxReq > 0 {
			t.maxReq = maxReq
		}
		if maxResp > 0 {
			t.maxResp = maxResp
		}
	}
}

// New wraps an open stream.
func New(conn io.ReadWriteCloser, opts ...Option) (*Transport, error) {
	if conn == nil {
		return nil, errors.New("packet: stream required")
	}
	t := &Transport{
		conn:    conn,
		timeout: time.Second,
		maxReq:  ec.DefaultMaxRequest,
		maxResp: ec.DefaultMaxResponse,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Negotiate replaces the default limits with the EC's advertised packet
// sizes. A cap of 0 keeps the negotiated response limit.
func (t *Transport) Negotiate(responseCap int) error {
	req, resp, err := ec.NegotiateLimits(t)
	if err != nil {
		return err
	}
	if responseCap > 0 && responseCap < resp {
		resp = responseCap
	}
	t.mu.Lock()
	t.maxReq, t.maxResp = req, resp
	t.mu.Unlock()
	return nil
}

func (t *Transport) MaxRequest() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxReq
}

func (t *Transport) MaxResponse() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxResp
}

func (t *Transport) Close() error {
	return t.conn.Close()
}

// Exchange writes one request frame and reads one response frame.
func (t *Transport) Exchange(cmd *ec.Command) (int, error) {
	if cmd.Command > 0xFFFF || cmd.Version > 0xFF {
		return 0, fmt.Errorf("packet: command 0x%x v%d not representable", cmd.Command, cmd.Version)
	}
	pkt, err := EncodeRequest(uint16(cmd.Command), uint8(cmd.Version), cmd.Data[:cmd.OutSize])
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if d, ok := t.conn.(deadliner); ok && t.timeout > 0 {
		_ = d.SetDeadline(time.Now().Add(t.timeout))
		defer d.SetDeadline(time.Time{})
	}

	if err := writeAll(t.conn, pkt); err != nil {
		return 0, fmt.Errorf("packet: write: %w", err)
	}

	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(t.conn, hdr[:]); err != nil {
		return 0, fmt.Errorf("packet: read header: %w", err)
	}
	h, err := ParseResponseHeader(hdr[:])
	if err != nil {
		return 0, err
	}

	n := int(h.DataLen)
	if n > int(cmd.InSize) || n > len(cmd.Data) {
		// keep the stream aligned for the next exchange
		_, _ = io.CopyN(io.Discard, t.conn, int64(n))
		return 0, fmt.Errorf("%w: %d > %d", ErrResponseTooBig, n, cmd.InSize)
	}
	body := cmd.Data[:n]
	if _, err := io.ReadFull(t.conn, body); err != nil {
		return 0, fmt.Errorf("packet: read data: %w", err)
	}
	if err := Verify(hdr[:], body); err != nil {
		return 0, err
	}

	cmd.Result = ec.Result(h.Result)
	return n, nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// internal/ec/channel.go
package ec

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Channel serializes command exchanges over one transport.
// At most one exchange is in flight at any time.
type Channel struct {
	mu     *sync.Mutex
	tr     Transport
	offset uint16
	logger *slog.Logger
}

// Option configures a Channel.
type Option func(*Channel)

// WithCommandOffset adds offset to every opcode, addressing a sub-device
// behind the same transport.
func WithCommandOffset(offset uint16) Option {
	return func(c *Channel) { c.offset = offset }
}

// WithLogger sets the channel logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewChannel wraps tr.
func NewChannel(tr Transport, opts ...Option) *Channel {
	c := &Channel{
		mu:     new(sync.Mutex),
		tr:     tr,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxRequest is the largest request payload the transport accepts.
func (c *Channel) MaxRequest() int { return c.tr.MaxRequest() }

// MaxResponse is the largest response payload the transport delivers.
func (c *Channel) MaxResponse() int { return c.tr.MaxResponse() }

// CommandOffset returns the configured sub-device offset.
func (c *Channel) CommandOffset() uint16 { return c.offset }

// Direct returns a view of c that sends opcodes without the sub-device
// offset, for queries the host EC answers itself. Both views share one
// lock, so exchanges stay serialized across them.
func (c *Channel) Direct() *Channel {
	return &Channel{mu: c.mu, tr: c.tr, logger: c.logger}
}

// Transfer performs one exchange and returns the response length.
//
// cmd.InSize is clamped to MaxResponse before sending. A non-success EC
// status is returned as *ProtocolError, a delivery failure as
// *TransportError. Nothing is retried.
func (c *Channel) Transfer(cmd *Command) (int, error) {
	if cmd == nil {
		return 0, errors.New("ec: nil command")
	}
	if maxReq := c.tr.MaxRequest(); maxReq > 0 && int(cmd.OutSize) > maxReq {
		return 0, fmt.Errorf("%w: request %d bytes, transport accepts %d",
			ErrMessageSize, cmd.OutSize, maxReq)
	}
	if maxResp := c.tr.MaxResponse(); maxResp > 0 && int(cmd.InSize) > maxResp {
		cmd.InSize = uint32(maxResp)
	}
	if need := int(max(cmd.OutSize, cmd.InSize)); len(cmd.Data) < need {
		return 0, fmt.Errorf("%w: payload buffer %d bytes, need %d",
			ErrMessageSize, len(cmd.Data), need)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	base := cmd.Command
	cmd.Command = base + uint32(c.offset)
	cmd.Result = ResultSuccess
	n, err := c.tr.Exchange(cmd)
	cmd.Command = base

	if err != nil {
		c.logger.Debug("ec transfer failed",
			"command", fmt.Sprintf("0x%04x", base),
			"error", err,
		)
		return 0, &TransportError{Command: base, Err: err}
	}
	if n < 0 || n > int(cmd.InSize) {
		return 0, &TransportError{
			Command: base,
			Err:     fmt.Errorf("response length %d outside 0..%d", n, cmd.InSize),
		}
	}
	if cmd.Result != ResultSuccess {
		c.logger.Debug("ec command rejected",
			"command", fmt.Sprintf("0x%04x", base),
			"result", cmd.Result.String(),
		)
		return 0, &ProtocolError{Command: base, Version: cmd.Version, Result: cmd.Result}
	}
	return n, nil
}

// Close releases the transport.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tr.Close()
}

// internal/ec/probe.go
package ec

import (
	"encoding/binary"
	"fmt"
)

// Supports reports whether the EC implements version of opcode.
//
// Only an "invalid command" answer yields false. Any other failure is
// inconclusive and treated as supported, so that a transient fault never
// disables a feature for the lifetime of the device.
func (c *Channel) Supports(opcode uint16, version uint8) bool {
	cmd := NewCommand(CmdGetCmdVersions, 1, GetCmdVersionsParamsSize, GetCmdVersionsResponseSize)
	GetCmdVersionsParams{Cmd: opcode}.MarshalTo(cmd.Data)

	n, err := c.Transfer(cmd)
	if err != nil {
		if Unsupported(err) {
			return false
		}
		c.logger.Debug("version probe inconclusive",
			"command", fmt.Sprintf("0x%04x", opcode),
			"error", err,
		)
		return true
	}
	if n < GetCmdVersionsResponseSize {
		c.logger.Debug("version probe short response",
			"command", fmt.Sprintf("0x%04x", opcode),
			"len", n,
		)
		return true
	}
	mask := binary.LittleEndian.Uint32(cmd.Data)
	return mask&VersionMask(version) != 0
}

// Probe sends cmd itself and reports whether the EC recognised it, using
// the same rule as Supports. Used for commands GET_CMD_VERSIONS does not
// describe reliably.
func (c *Channel) Probe(cmd *Command) bool {
	_, err := c.Transfer(cmd)
	if err == nil {
		return true
	}
	if Unsupported(err) {
		return false
	}
	c.logger.Debug("command probe inconclusive",
		"command", fmt.Sprintf("0x%04x", cmd.Command),
		"error", err,
	)
	return true
}

// packetHeaderSize is the v3 framing overhead removed from the advertised
// packet sizes to obtain payload limits.
const packetHeaderSize = 8

// NegotiateLimits asks the EC for its packet limits through tr directly,
// before any Channel exists. It returns payload limits.
func NegotiateLimits(tr Transport) (maxRequest, maxResponse int, err error) {
	cmd := NewCommand(CmdGetProtocolInfo, 0, 0, ProtocolInfoSize)
	n, err := tr.Exchange(cmd)
	if err != nil {
		return 0, 0, &TransportError{Command: cmd.Command, Err: err}
	}
	if cmd.Result != ResultSuccess {
		return 0, 0, &ProtocolError{Command: cmd.Command, Result: cmd.Result}
	}
	info, err := ParseProtocolInfo(cmd.Data[:n])
	if err != nil {
		return 0, 0, err
	}
	maxRequest = int(info.MaxRequestPacketSize) - packetHeaderSize
	maxResponse = int(info.MaxResponsePacketSize) - packetHeaderSize
	if maxRequest <= 0 || maxResponse <= 0 {
		return 0, 0, fmt.Errorf("ec: implausible packet limits %d/%d",
			info.MaxRequestPacketSize, info.MaxResponsePacketSize)
	}
	return maxRequest, maxResponse, nil
}

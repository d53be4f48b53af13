// internal/snapshot/snapshot.go

// Package snapshot implements the one-shot EC queries: panic info,
// USB-PD port status and uptime.
package snapshot

import (
	"fmt"
	"strings"

	"github.com/tamzrod/ecdebug/internal/ec"
)

// Commander performs EC exchanges. Satisfied by *ec.Channel.
type Commander interface {
	Transfer(cmd *ec.Command) (int, error)
	MaxResponse() int
}

// Prober tests whether the EC recognises a command.
type Prober interface {
	Probe(cmd *ec.Command) bool
}

// ------------------------------------------------------------
// Panic info
// ------------------------------------------------------------

// PanicInfo fetches the EC panic record. A nil slice with a nil error
// means no panic is recorded.
func PanicInfo(ch Commander) ([]byte, error) {
	size := ch.MaxResponse()
	if size < 1 {
		return nil, fmt.Errorf("snapshot: unusable max response %d", size)
	}

	cmd := ec.NewCommand(ec.CmdGetPanicInfo, 0, 0, size)
	n, err := ch.Transfer(cmd)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return append([]byte(nil), cmd.Data[:n]...), nil
}

// ------------------------------------------------------------
// USB-PD ports
// ------------------------------------------------------------

// Port is the decoded state of one PD port.
type Port struct {
	Index    int
	State    string
	Enabled  uint8
	Role     uint8
	Polarity uint8
}

func (p Port) String() string {
	return fmt.Sprintf("p%d: %s en:%.2x role:%.2x pol:%.2x",
		p.Index, p.State, p.Enabled, p.Role, p.Polarity)
}

// Ports queries ports 0..USBPDMaxPorts-1 in order and stops at the
// first failure, which also marks the end of the port list.
func Ports(ch Commander) []Port {
	var ports []Port
	for i := 0; i < ec.USBPDMaxPorts; i++ {
		cmd := ec.NewCommand(ec.CmdUSBPDControl, 1,
			ec.USBPDControlParamsSize, ec.USBPDControlResponseV1Size)
		ec.USBPDControlParams{Port: uint8(i)}.MarshalTo(cmd.Data)

		if _, err := ch.Transfer(cmd); err != nil {
			break
		}
		r, err := ec.ParseUSBPDControlResponseV1(cmd.Data)
		if err != nil {
			break
		}
		ports = append(ports, Port{
			Index:    i,
			State:    r.StateName(),
			Enabled:  r.Enabled,
			Role:     r.Role,
			Polarity: r.Polarity,
		})
	}
	return ports
}

// PortStatus renders Ports one line each. Failures never surface; an EC
// without PD support yields an empty string.
func PortStatus(ch Commander) string {
	var sb strings.Builder
	for _, p := range Ports(ch) {
		sb.WriteString(p.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ------------------------------------------------------------
// Uptime
// ------------------------------------------------------------

// UptimeInfo fetches the full uptime record.
func UptimeInfo(ch Commander) (ec.UptimeInfo, error) {
	cmd := ec.NewCommand(ec.CmdGetUptimeInfo, 0, 0, ec.UptimeInfoSize)
	n, err := ch.Transfer(cmd)
	if err != nil {
		return ec.UptimeInfo{}, err
	}
	return ec.ParseUptimeInfo(cmd.Data[:n])
}

// Uptime renders milliseconds since EC boot as a decimal line.
func Uptime(ch Commander) (string, error) {
	info, err := UptimeInfo(ch)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d\n", info.TimeSinceECBootMs), nil
}

// UptimeSupported sends GET_UPTIME_INFO once to see whether the EC
// knows it.
func UptimeSupported(p Prober) bool {
	return p.Probe(ec.NewCommand(ec.CmdGetUptimeInfo, 0, 0, ec.UptimeInfoSize))
}

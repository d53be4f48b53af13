// internal/status/encode.go
package status

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// encMode uses Core Deterministic Encoding: the same snapshot always
// produces identical bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("status: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("status: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeCBOR renders snapshots as a CBOR array.
func EncodeCBOR(snaps []Snapshot) ([]byte, error) {
	return encMode.Marshal(snaps)
}

// DecodeCBOR parses the output of EncodeCBOR.
func DecodeCBOR(data []byte) ([]Snapshot, error) {
	var snaps []Snapshot
	if err := decMode.Unmarshal(data, &snaps); err != nil {
		return nil, fmt.Errorf("status: decode: %w", err)
	}
	return snaps, nil
}

// EncodeYAML renders snapshots as a YAML sequence.
func EncodeYAML(snaps []Snapshot) ([]byte, error) {
	return yaml.Marshal(snaps)
}

// WriteText renders a human-readable summary, one device per block.
func WriteText(w io.Writer, snaps []Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, s := range snaps {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "device\t%s\n", s.Device)
		fmt.Fprintf(tw, "health\t%s\n", HealthName(s.Health))
		if s.Health == HealthError {
			fmt.Fprintf(tw, "last error\t%d (%ds)\t%s\n", s.LastErrorCode, s.SecondsInError, s.LastError)
		}
		fmt.Fprintf(tw, "suspended\t%t\n", s.Suspended)
		fmt.Fprintf(tw, "console log\t%t\n", s.Features.ConsoleLog)
		fmt.Fprintf(tw, "uptime\t%t\n", s.Features.Uptime)
		if c := s.Console; c != nil {
			fmt.Fprintf(tw, "console\t%s\t%d/%d bytes\tdropped %d\tdrains %d\terrors %d\n",
				c.State, c.Buffered, c.Capacity, c.Dropped, c.Drains, c.Errors)
		}
		for _, p := range s.Ports {
			fmt.Fprintf(tw, "port %d\t%s\ten:%.2x role:%.2x pol:%.2x\n",
				p.Index, p.State, p.Enabled, p.Role, p.Polarity)
		}
		if u := s.Uptime; u != nil {
			fmt.Fprintf(tw, "since boot\t%d ms\tap resets %d\treset flags 0x%08x\n",
				u.SinceBootMs, u.APResets, u.ECResetFlags)
		}
		fmt.Fprintf(tw, "panic info\t%d bytes\n", s.PanicInfoBytes)
		fmt.Fprintf(tw, "last resume result\t0x%08x\n", s.LastResumeResult)
		fmt.Fprintf(tw, "suspend timeout\t%d ms\n", s.SuspendTimeoutMs)
	}
	return tw.Flush()
}

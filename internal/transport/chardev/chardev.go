// internal/transport/chardev/chardev.go

// Package chardev talks to the EC through the kernel's cros_ec character
// device (/dev/cros_ec and friends).
package chardev

import (
	"encoding/binary"

	"github.com/tamzrod/ecdebug/internal/ec"
)

// DefaultPath is the main EC node.
const DefaultPath = "/dev/cros_ec"

//
// ---- cros_ec_command ioctl layout (LOCKED) ----
//
// 0–3    version
// 4–7    command
// 8–11   outsize
// 12–15  insize
// 16–19  result
// 20+    data[max(outsize, insize)]
//

const headerSize = 20

// encodeCommand lays cmd out for the XCMD ioctl.
func encodeCommand(cmd *ec.Command) []byte {
	size := max(cmd.OutSize, cmd.InSize)
	buf := make([]byte, headerSize+int(size))
	binary.LittleEndian.PutUint32(buf[0:4], cmd.Version)
	binary.LittleEndian.PutUint32(buf[4:8], cmd.Command)
	binary.LittleEndian.PutUint32(buf[8:12], cmd.OutSize)
	binary.LittleEndian.PutUint32(buf[12:16], cmd.InSize)
	binary.LittleEndian.PutUint32(buf[16:20], 0xFF)
	copy(buf[headerSize:], cmd.Data[:cmd.OutSize])
	return buf
}

// decodeResult copies n response bytes and the EC status back into cmd.
func decodeResult(buf []byte, n int, cmd *ec.Command) int {
	cmd.Result = ec.Result(binary.LittleEndian.Uint32(buf[16:20]))
	n = min(n, int(cmd.InSize), len(buf)-headerSize)
	if n < 0 {
		n = 0
	}
	copy(cmd.Data, buf[headerSize:headerSize+n])
	return n
}
